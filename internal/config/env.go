package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string `validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty     bool
	File       string
	MaxSizeMB  int `validate:"min=1"`
	MaxBackups int `validate:"min=0"`
	MaxAgeDays int `validate:"min=0"`
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string `validate:"required_if=Send true"`
	OrgID         string
	Dataset       string
	FlushInterval time.Duration `validate:"min=0"`
}

// RenamerConfig controls the per-file pipeline and CLI defaults.
type RenamerConfig struct {
	Provider      string
	Model         string
	PromptPath    string `validate:"required"`
	Pages         int    `validate:"min=1"`
	NameLimit     int    `validate:"min=16"`
	DryRun        bool
	ProvidersFile string
}

// LLMConfig tunes the provider call.
type LLMConfig struct {
	Timeout           time.Duration `validate:"min=0"`
	RequestsPerMinute int           `validate:"min=0"`
	MaxTokens         int           `validate:"min=0"`
	Temperature       float64       `validate:"min=0,max=2"`
	// BaseURLs overrides provider endpoints, keyed by provider family.
	BaseURLs map[string]string
}

// LockConfig enables the Redis directory lock when RedisURL is set.
type LockConfig struct {
	RedisURL string
	TTL      time.Duration `validate:"min=1s"`
}

// ArchiveConfig enables S3 backups of originals when Bucket is set.
type ArchiveConfig struct {
	Bucket string
	Prefix string
	Region string
}

// Config is the top-level configuration.
type Config struct {
	Logging     LoggingConfig
	Axiom       AxiomConfig
	Renamer     RenamerConfig
	LLM         LLMConfig
	Lock        LockConfig
	Archive     ArchiveConfig
	MetricsFile string
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfrename",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Renamer = RenamerConfig{
		Provider:      strings.ToLower(getEnv("PDFRENAME_PROVIDER", "anthropic")),
		Model:         getEnv("PDFRENAME_MODEL", ""),
		PromptPath:    getEnv("PDFRENAME_PROMPT", "prompt.txt"),
		Pages:         parseInt(getEnv("PDFRENAME_PAGES", "5"), 5),
		NameLimit:     parseInt(getEnv("PDFRENAME_NAME_LIMIT", "200"), 200),
		DryRun:        parseBool(getEnv("PDFRENAME_DRY_RUN", "0")),
		ProvidersFile: getEnv("PDFRENAME_PROVIDERS_FILE", ""),
	}

	cfg.LLM = LLMConfig{
		Timeout:           parseDuration(getEnv("LLM_TIMEOUT", ""), 0),
		RequestsPerMinute: parseInt(getEnv("LLM_RPM", "0"), 0),
		MaxTokens:         parseInt(getEnv("LLM_MAX_TOKENS", "0"), 0),
		Temperature:       parseFloat(getEnv("LLM_TEMPERATURE", "0"), 0),
		BaseURLs:          map[string]string{},
	}
	for _, p := range []string{"openai", "anthropic", "gemini", "perplexity", "llama"} {
		if v := getEnv(strings.ToUpper(p)+"_BASE_URL", ""); v != "" {
			cfg.LLM.BaseURLs[p] = v
		}
	}

	cfg.Lock = LockConfig{
		RedisURL: getEnv("REDIS_URL", ""),
		TTL:      parseDuration(getEnv("LOCK_TTL", "2m"), 2*time.Minute),
	}

	cfg.Archive = ArchiveConfig{
		Bucket: getEnv("ARCHIVE_S3_BUCKET", ""),
		Prefix: getEnv("ARCHIVE_S3_PREFIX", "pdfrename/originals"),
		Region: getEnv("AWS_REGION", ""),
	}

	cfg.MetricsFile = getEnv("METRICS_FILE", "")

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
