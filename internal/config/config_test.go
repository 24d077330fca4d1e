package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PDFRENAME_PROVIDER", "PDFRENAME_MODEL", "PDFRENAME_PROMPT", "PDFRENAME_PAGES", "LLM_TIMEOUT", "REDIS_URL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()

	assert.Equal(t, "anthropic", cfg.Renamer.Provider)
	assert.Empty(t, cfg.Renamer.Model)
	assert.Equal(t, "prompt.txt", cfg.Renamer.PromptPath)
	assert.Equal(t, 5, cfg.Renamer.Pages)
	assert.Equal(t, 200, cfg.Renamer.NameLimit)
	assert.Zero(t, cfg.LLM.Timeout)
	assert.Empty(t, cfg.Lock.RedisURL)
	assert.Equal(t, 2*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PDFRENAME_PROVIDER", "OpenAI")
	t.Setenv("PDFRENAME_PAGES", "3")
	t.Setenv("LLM_TIMEOUT", "45s")
	t.Setenv("LLM_RPM", "30")
	t.Setenv("LLAMA_BASE_URL", "http://gpu-box:8080/v1")
	t.Setenv("AXIOM_DATASET", "prod")
	t.Setenv("LOCK_TTL", "not-a-duration")

	cfg := FromEnv()
	assert.Equal(t, "openai", cfg.Renamer.Provider)
	assert.Equal(t, 3, cfg.Renamer.Pages)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 30, cfg.LLM.RequestsPerMinute)
	assert.Equal(t, "http://gpu-box:8080/v1", cfg.LLM.BaseURLs["llama"])
	assert.Equal(t, "prod_pdfrename", cfg.Axiom.Dataset)
	assert.Equal(t, 2*time.Minute, cfg.Lock.TTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero pages", func(c *Config) { c.Renamer.Pages = 0 }, "Pages"},
		{"tiny name limit", func(c *Config) { c.Renamer.NameLimit = 4 }, "NameLimit"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "Level"},
		{"axiom without key", func(c *Config) { c.Axiom.Send = true; c.Axiom.APIKey = "" }, "APIKey"},
		{"hot temperature", func(c *Config) { c.LLM.Temperature = 3 }, "Temperature"},
		{"empty prompt path", func(c *Config) { c.Renamer.PromptPath = "" }, "PromptPath"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PDFRENAME_TEST_KEY=from-file\nPDFRENAME_TEST_SET=from-file\n"), 0o600))
	t.Setenv("PDFRENAME_TEST_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("PDFRENAME_TEST_KEY") })

	loaded, err := LoadEnvFile(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-file", os.Getenv("PDFRENAME_TEST_KEY"))
	assert.Equal(t, "from-env", os.Getenv("PDFRENAME_TEST_SET"))

	loaded, err = LoadEnvFile(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestLoadPrompt(t *testing.T) {
	dir := t.TempDir()

	bom := filepath.Join(dir, "bom.txt")
	require.NoError(t, os.WriteFile(bom, append([]byte{0xEF, 0xBB, 0xBF}, "Return JSON."...), 0o600))
	got, err := LoadPrompt(bom)
	require.NoError(t, err)
	assert.Equal(t, "Return JSON.", got)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte(" \n"), 0o600))
	_, err = LoadPrompt(empty)
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = LoadPrompt(filepath.Join(dir, "nope.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
