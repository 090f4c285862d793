package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/HendryAvila/divine-quiz/internal/questions"
)

// run executes the CLI in a scratch directory with a file-backed store.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func scratch(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DIVINE_QUIZ_STORE_DRIVER", "file")
	t.Setenv("DIVINE_QUIZ_STORE_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("DIVINE_QUIZ_LOG_LEVEL", "error")
	return dir
}

func TestCode(t *testing.T) {
	out, _, err := run(t, "", "code", "--day", "15", "--month", "6", "--year", "1990", "--color", "blue", "--favorite", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Code:    8-9-7")
	assert.Contains(t, out, "Rarity:")
}

func TestCode_Invalid(t *testing.T) {
	_, _, err := run(t, "", "code", "--day", "40", "--month", "6", "--year", "1990", "--color", "blue", "--favorite", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "day 40")

	_, _, err = run(t, "", "code", "--day", "1")
	require.Error(t, err, "missing required flags")
}

func TestHashPassword(t *testing.T) {
	out, _, err := run(t, "", "admin", "hash-password", "--password", "s3cret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestHashPassword_Stdin(t *testing.T) {
	out, _, err := run(t, "from-stdin\n", "admin", "hash-password")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin")))

	_, _, err = run(t, "", "admin", "hash-password")
	assert.Error(t, err, "empty password")
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "divinequiz vdev\n", out)
}

func TestQuestions_ValidateDefaults(t *testing.T) {
	scratch(t)
	out, _, err := run(t, "", "questions", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestQuestions_ExportImportRestore(t *testing.T) {
	dir := scratch(t)
	exportPath := filepath.Join(dir, "bank.json")

	_, _, err := run(t, "", "questions", "export", "--out", exportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	var doc questions.ExportData
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Questions, 8)

	// Drop the last question and import the trimmed bank.
	doc.Questions = doc.Questions[:7]
	trimmed, err := json.Marshal(doc)
	require.NoError(t, err)
	out, _, err := run(t, string(trimmed), "questions", "import", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 7 question(s)")

	out, _, err = run(t, "", "questions", "restore")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 8 question(s)")
}

func TestQuestions_ImportRejectsGarbage(t *testing.T) {
	scratch(t)
	_, _, err := run(t, "not json", "questions", "import", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import rejected")
}

func TestQuestions_RestoreWithoutBackup(t *testing.T) {
	scratch(t)
	_, _, err := run(t, "", "questions", "restore")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backup")
}

func TestLoad_BadConfig(t *testing.T) {
	scratch(t)
	t.Setenv("DIVINE_QUIZ_STORE_DRIVER", "floppy")
	_, _, err := run(t, "", "questions", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}
