package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFiles_Defaults(t *testing.T) {
	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, LLMProviderGemini, cfg.LLM.DefaultProvider)
	assert.Equal(t, BackendModeDirect, cfg.Backend.Mode)
	assert.Equal(t, "Kore", cfg.Gemini.Voice)
	assert.Equal(t, "佐藤医師", cfg.Editor.Author)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	dir := t.TempDir()
	base := writeConfig(t, dir, "base.toml", `
[server]
port = 9000
host = "0.0.0.0"

[editor]
author = "Dr. Base"
`)
	override := writeConfig(t, dir, "override.toml", `
[server]
port = 9100

[llm]
default_provider = "claude"
`)

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "Dr. Base", cfg.Editor.Author)
	assert.Equal(t, LLMProviderClaude, cfg.LLM.DefaultProvider)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "handoff.toml", "[server]\nport = 9000\n")

	t.Setenv("HANDOFF_SERVER_PORT", "9200")
	t.Setenv("HANDOFF_LOG_OUTPUT", "stdout, file ,")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, []string{"stdout", "file"}, cfg.Logging.Output)
}

func TestLoadFromFiles_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFiles(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := writeConfig(t, dir, "bad.toml", "[llm]\ndefault_provider = \"openai\"\n")
	_, err = LoadFromFiles(bad)
	assert.Error(t, err)

	remote := writeConfig(t, dir, "remote.toml", "[backend]\nmode = \"remote\"\n")
	_, err = LoadFromFiles(remote)
	assert.Error(t, err)

	cron := writeConfig(t, dir, "cron.toml", "[editor]\njanitor_schedule = \"not a schedule\"\n")
	_, err = LoadFromFiles(cron)
	assert.Error(t, err)
}

func TestValidate_ProductionRefusesReset(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Badger.ResetOnStartup = true
	assert.NoError(t, cfg.Validate())

	cfg.Environment = "Production"
	assert.True(t, cfg.IsProduction())
	assert.Error(t, cfg.Validate())
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 8080, cfg.Server.Port)

	ApplyFlagOverrides(cfg, 7000, "example.internal")
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "example.internal", cfg.Server.Host)
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("API_KEY", "")

	_, err := ResolveAPIKey("gemini_api_key", "")
	assert.Error(t, err)

	key, err := ResolveAPIKey("gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	t.Setenv("GOOGLE_API_KEY", "from-env")
	key, err = ResolveAPIKey("gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("-1s", time.Minute))
}

func TestIDs(t *testing.T) {
	assert.Regexp(t, `^doc_[0-9a-f-]{36}$`, NewDocumentID())
	assert.Regexp(t, `^ses_[0-9a-f-]{36}$`, NewSessionID())
	for i := 0; i < 50; i++ {
		assert.Regexp(t, `^V[1-9]\d{4}$`, NewVisitID())
	}
}
