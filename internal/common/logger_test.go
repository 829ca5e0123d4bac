package common

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	path, err := logFilePath(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "handoff.log"), path)
	assert.DirExists(t, dir)
}

func TestInitLogger_ConsoleOnly(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Logging.Output = []string{"stdout"}
	cfg.Logging.Level = "warn"

	require.NotNil(t, InitLogger(cfg))
	assert.NotNil(t, GetLogger())
}
