package ai

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderTable maps model names to provider families and provider
// families to the environment variable holding their API key.
type ProviderTable struct {
	DefaultModel    string            `yaml:"default_model"`
	DefaultProvider string            `yaml:"default_provider"`
	Models          map[string]string `yaml:"models"`
	EnvVars         map[string]string `yaml:"env_vars"`
	// ProviderModels is the model used when only a provider is chosen.
	ProviderModels map[string]string `yaml:"provider_models"`
}

// Selection is a resolved provider, model and API key.
type Selection struct {
	Provider string
	Model    string
	EnvVar   string
	APIKey   string
}

func DefaultProviderTable() ProviderTable {
	return ProviderTable{
		DefaultModel:    "claude-3-haiku-20240307",
		DefaultProvider: "anthropic",
		Models: map[string]string{
			"claude-3-haiku-20240307":  "anthropic",
			"claude-3-sonnet-20240229": "anthropic",
			"claude-3-opus-20240229":   "anthropic",
			"gpt-4-turbo":              "openai",
			"gpt-4":                    "openai",
			"gpt-3.5-turbo":            "openai",
			"gemini-pro":               "gemini",
			"pplx-70b-online":          "perplexity",
			"llama-2-70b":              "llama",
		},
		EnvVars: map[string]string{
			"anthropic":  "ANTHROPIC_API_KEY",
			"openai":     "OPENAI_API_KEY",
			"gemini":     "GEMINI_API_KEY",
			"perplexity": "PERPLEXITY_API_KEY",
			// local servers accept any value
			"llama": "LLAMA_API_KEY",
		},
		ProviderModels: map[string]string{
			"anthropic":  "claude-3-haiku-20240307",
			"openai":     "gpt-4-turbo",
			"gemini":     "gemini-pro",
			"perplexity": "pplx-70b-online",
			"llama":      "llama-2-70b",
		},
	}
}

// LoadProviderTable reads a YAML table from path and merges it over the
// defaults. Entries in the file win.
func LoadProviderTable(path string) (ProviderTable, error) {
	t := DefaultProviderTable()
	b, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read provider table: %w", err)
	}
	var override ProviderTable
	if err := yaml.Unmarshal(b, &override); err != nil {
		return t, fmt.Errorf("parse provider table %s: %w", path, err)
	}
	t.merge(override)
	return t, nil
}

func (t *ProviderTable) merge(o ProviderTable) {
	if o.DefaultModel != "" {
		t.DefaultModel = o.DefaultModel
	}
	if o.DefaultProvider != "" {
		t.DefaultProvider = strings.ToLower(o.DefaultProvider)
	}
	for k, v := range o.Models {
		t.Models[k] = strings.ToLower(v)
	}
	for k, v := range o.EnvVars {
		t.EnvVars[strings.ToLower(k)] = v
	}
	for k, v := range o.ProviderModels {
		t.ProviderModels[strings.ToLower(k)] = v
	}
}

// Resolve picks the provider for model and looks up its API key.
// A model known to the table decides the provider. Otherwise an explicit
// provider is used, then DefaultProvider. An empty model selects the
// provider's default model, then DefaultModel.
func (t ProviderTable) Resolve(model, provider string, lookup func(string) (string, bool)) (Selection, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)

	if model == "" {
		if m, ok := t.ProviderModels[provider]; ok && m != "" {
			model = m
		} else {
			model = t.DefaultModel
		}
	}
	if p, ok := t.Models[model]; ok {
		provider = p
	} else if provider == "" {
		provider = t.DefaultProvider
	}

	envVar, ok := t.EnvVars[provider]
	if !ok {
		return Selection{}, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	sel := Selection{Provider: provider, Model: model, EnvVar: envVar}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	key, _ := lookup(envVar)
	if strings.TrimSpace(key) == "" {
		return sel, fmt.Errorf("%w: provider %q needs %s in the environment or .env file", ErrMissingAPIKey, provider, envVar)
	}
	sel.APIKey = key
	return sel, nil
}

// ClientOptions tune the HTTP clients built by NewClient.
type ClientOptions struct {
	HTTP *http.Client
	// BaseURLs overrides the endpoint per provider.
	BaseURLs map[string]string
}

// NewClient builds the client for a provider family.
func NewClient(provider string, opts ClientOptions) (Client, error) {
	base := opts.BaseURLs[provider]
	switch provider {
	case "anthropic":
		return NewAnthropicClient(base, opts.HTTP), nil
	case "openai":
		return NewOpenAIClient("openai", base, opts.HTTP), nil
	case "gemini":
		return NewGeminiClient(base, opts.HTTP), nil
	case "perplexity":
		if base == "" {
			base = PerplexityBaseURL
		}
		return NewOpenAIClient("perplexity", base, opts.HTTP), nil
	case "llama":
		if base == "" {
			base = LlamaBaseURL
		}
		return NewOpenAIClient("llama", base, opts.HTTP), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}
