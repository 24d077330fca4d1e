package metadata

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Completer sends a system prompt and user text to a language model and
// returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Inferrer asks a model for bibliographic metadata and parses the reply.
type Inferrer struct {
	llm    Completer
	prompt string
}

// NewInferrer creates an Inferrer that sends prompt as the system message.
func NewInferrer(llm Completer, prompt string) *Inferrer {
	return &Inferrer{llm: llm, prompt: prompt}
}

// Infer returns the record guessed for text. Remote and parse failures are
// logged here and returned as errors; nothing panics past this boundary.
func (i *Inferrer) Infer(ctx context.Context, text string) (Record, error) {
	raw, err := i.llm.Complete(ctx, i.prompt, text)
	if err != nil {
		log.Warn().Err(err).Msg("metadata inference call failed")
		return Record{}, fmt.Errorf("complete: %w", err)
	}
	rec, err := Parse(raw)
	if err != nil {
		log.Warn().Err(err).Int("response_chars", len(raw)).Msg("metadata response rejected")
		return Record{}, err
	}
	log.Debug().Str("author", rec.Author).Str("title", rec.Title).Str("pubdate", rec.PubDate).Msg("metadata inferred")
	return rec, nil
}
