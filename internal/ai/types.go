package ai

import (
	"context"
	"errors"
	"fmt"
)

// Request is a single completion: a system prompt plus user text.
type Request struct {
	Model        string
	SystemPrompt string
	UserText     string
	APIKey       string
	MaxTokens    int
	Temperature  float64
	// Options are merged into the provider payload as-is.
	Options map[string]any
}

type Response struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Client interface for providers like OpenAI, Anthropic, Gemini.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

var (
	ErrRateLimited     = errors.New("rate_limited")
	ErrContentRefused  = errors.New("content_refused")
	ErrMissingAPIKey   = errors.New("missing api key")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrEmptyResponse   = errors.New("empty response")
)

// HTTPError represents a non-2xx status returned by a provider.
type HTTPError struct {
	StatusCode int
	Body       string
	Provider   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Provider, e.Body)
}

func IsRateLimited(err error) bool    { return errors.Is(err, ErrRateLimited) }
func IsContentRefused(err error) bool { return errors.Is(err, ErrContentRefused) }
