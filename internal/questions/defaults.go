package questions

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultQuestions returns the built-in bank, sanitized and tagged, with
// every entry active and stamped with now.
func DefaultQuestions(now time.Time) []Question {
	var list []Question
	if err := yaml.Unmarshal(defaultsYAML, &list); err != nil {
		// The file is embedded at build time; a parse failure is a build defect.
		panic(fmt.Sprintf("questions: parsing embedded defaults: %v", err))
	}
	for i := range list {
		list[i] = Sanitize(list[i])
		list[i].Order = i + 1
		list[i].IsActive = true
		list[i].CreatedAt = now
		list[i].UpdatedAt = now
	}
	return list
}
