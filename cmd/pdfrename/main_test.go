package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/local/pdfrename/internal/config"
)

func TestParseFlags(t *testing.T) {
	var out bytes.Buffer
	f, err := parseFlags([]string{"--model", "gpt-4", "--pages", "2", "--dry-run", "/tmp/papers"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", f.model)
	assert.Equal(t, 2, f.pages)
	assert.True(t, f.dryRun)
	assert.Equal(t, "/tmp/papers", f.dir)
	assert.Equal(t, "anthropic", f.provider)
	assert.Equal(t, "prompt.txt", f.prompt)
	assert.True(t, f.set["model"])
	assert.False(t, f.set["provider"])

	_, err = parseFlags([]string{"a", "b"}, &out)
	assert.Error(t, err)
}

func TestOverlay_OnlyExplicitFlags(t *testing.T) {
	t.Setenv("PDFRENAME_PAGES", "3")
	t.Setenv("PDFRENAME_PROVIDER", "gemini")
	cfg := cfgpkg.FromEnv()

	f, err := parseFlags([]string{"--model", "gpt-4"}, &bytes.Buffer{})
	require.NoError(t, err)
	f.overlay(&cfg)

	assert.Equal(t, "gpt-4", cfg.Renamer.Model)
	assert.Equal(t, 3, cfg.Renamer.Pages, "env value kept when --pages is absent")
	assert.Equal(t, "gemini", cfg.Renamer.Provider)
}

func TestResolveDirectory(t *testing.T) {
	dir := t.TempDir()

	got, err := resolveDirectory(dir, nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	var out bytes.Buffer
	got, err = resolveDirectory("", strings.NewReader("  "+dir+"\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.Contains(t, out.String(), "Enter the directory")

	_, err = resolveDirectory("", strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, errInvalidDirectory)

	file := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = resolveDirectory(file, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, errInvalidDirectory)
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandHome("~/papers")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "papers"), got)

	got, err = expandHome("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	got, err = expandHome("~other/x")
	require.NoError(t, err)
	assert.Equal(t, "~other/x", got)
}

// cleanEnv isolates run from the developer's environment.
func cleanEnv(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "REDIS_URL", "ARCHIVE_S3_BUCKET",
		"PDFRENAME_PROVIDER", "PDFRENAME_MODEL", "PDFRENAME_PROMPT", "PDFRENAME_PAGES",
		"SEND_LOGS_TO_AXIOM", "LOG_FILE", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestRun_ConfigurationErrors(t *testing.T) {
	envFile := cleanEnv(t)
	dir := t.TempDir()
	prompt := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(prompt, []byte("Return JSON."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.pdf"), []byte("%PDF-1.4\n"), 0o600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad directory", []string{"--env-file", envFile, "--prompt", prompt, filepath.Join(dir, "nope")}, "invalid directory"},
		{"missing prompt", []string{"--env-file", envFile, "--prompt", filepath.Join(dir, "nope.txt"), dir}, "Prompt file not found"},
		{"missing key", []string{"--env-file", envFile, "--prompt", prompt, dir}, "ANTHROPIC_API_KEY"},
		{"bad pages", []string{"--env-file", envFile, "--prompt", prompt, "--pages", "0", dir}, "Pages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code := run(context.Background(), tt.args, strings.NewReader(""), &out)

			assert.Equal(t, 1, code)
			assert.Contains(t, out.String(), tt.want)
			assert.FileExists(t, filepath.Join(dir, "doc.pdf"), "no file touched")
		})
	}
}

func TestRun_DryRunAgainstEmptyDirectory(t *testing.T) {
	envFile := cleanEnv(t)
	t.Setenv("OPENAI_API_KEY", "test-key")
	dir := t.TempDir()
	prompt := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(prompt, []byte("Return JSON."), 0o600))
	metricsFile := filepath.Join(t.TempDir(), "pdfrename.prom")

	var out bytes.Buffer
	code := run(context.Background(), []string{
		"--env-file", envFile, "--prompt", prompt, "--model", "gpt-4",
		"--dry-run", "--metrics-file", metricsFile, dir,
	}, strings.NewReader(""), &out)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Renamed 0, skipped 0, failed 0.")
	assert.FileExists(t, metricsFile)
}
