// Package dispatcher sends metadata prompts to the selected provider.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/local/pdfrename/internal/ai"
	"github.com/local/pdfrename/internal/metrics"
)

type Config struct {
	Model  string
	APIKey string
	// Timeout bounds a single call. Zero waits as long as the provider does.
	Timeout time.Duration
	// RequestsPerMinute paces calls. Zero disables pacing.
	RequestsPerMinute int
	MaxTokens         int
	Temperature       float64
	Options           map[string]any
}

// Dispatcher adapts an ai.Client to the single-call shape the renamer needs.
type Dispatcher struct {
	client  ai.Client
	cfg     Config
	limiter *rate.Limiter
}

func New(client ai.Client, cfg Config) *Dispatcher {
	d := &Dispatcher{client: client, cfg: cfg}
	if cfg.RequestsPerMinute > 0 {
		d.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return d
}

func (d *Dispatcher) Provider() string { return d.client.Name() }
func (d *Dispatcher) Model() string    { return d.cfg.Model }

// Complete sends one system prompt and user text and returns the raw reply.
func (d *Dispatcher) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	provider, model := d.client.Name(), d.cfg.Model

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := d.client.Complete(ctx, ai.Request{
		Model:        model,
		SystemPrompt: systemPrompt,
		UserText:     userText,
		APIKey:       d.cfg.APIKey,
		MaxTokens:    d.cfg.MaxTokens,
		Temperature:  d.cfg.Temperature,
		Options:      d.cfg.Options,
	})
	dur := time.Since(start)
	class := Classify(err)
	metrics.ObserveProvider(provider, model, class, dur)

	if err != nil {
		log.Warn().Err(err).
			Str("provider", provider).
			Str("model", model).
			Str("class", class).
			Dur("duration", dur).
			Msg("provider request failed")
		return "", fmt.Errorf("%s/%s: %w", provider, model, err)
	}

	log.Debug().
		Str("provider", provider).
		Str("model", model).
		Int("tokens_in", resp.TokensIn).
		Int("tokens_out", resp.TokensOut).
		Dur("duration", dur).
		Msg("provider request ok")
	return resp.Text, nil
}
