// Package kvstore is the key/value persistence boundary of the quiz.
//
// Every stored document (question bank, its backup slot, settings, leads,
// analytics) is a JSON string under a fixed key. The Store interface keeps
// that layout independent of where the bytes live, so the repository and
// the admin layer depend on the abstraction (DIP) and tests use the
// in-memory adapter.
//
// Writes are last-write-wins. Two processes editing the same key can
// overwrite each other; nothing here arbitrates between them.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Well-known keys. Values are JSON documents.
const (
	KeyQuestions          = "divine_quiz_questions"
	KeyQuestionsBackup    = "divine_quiz_questions_backup"
	KeyAnalytics          = "divine_quiz_analytics"
	KeyLeads              = "divine_quiz_leads"
	KeyPixelSettings      = "pixel_settings"
	KeyTransitionSettings = "transition_settings"
)

// ErrEmptyKey is returned by every adapter for a blank key.
var ErrEmptyKey = errors.New("kvstore: empty key")

// Store is a string key/value store.
// Get reports found=false (and a nil error) for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and parameterises an adapter.
type Config struct {
	Driver string

	// DataDir is used by the file and sqlite drivers.
	DataDir string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string
	DialTimeout    time.Duration
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return Config{
		Driver:         DriverMemory,
		DataDir:        "data",
		RedisAddr:      "localhost:6379",
		RedisNamespace: "divinequiz",
		DialTimeout:    5 * time.Second,
	}
}

// Open builds the adapter named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		return NewFileStore(cfg.DataDir)
	case DriverSQLite:
		return NewSQLiteStore(cfg.DataDir)
	case DriverRedis:
		return NewRedisStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("kvstore: unknown driver %q (want memory, file, sqlite or redis)", cfg.Driver)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}
