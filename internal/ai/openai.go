package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	PerplexityBaseURL = "https://api.perplexity.ai"
	// LlamaBaseURL points at a local OpenAI-compatible server (ollama).
	LlamaBaseURL = "http://localhost:11434/v1"
)

// OpenAIClient talks to the chat completions API. Perplexity and local
// llama servers expose the same wire format under a different base URL.
type OpenAIClient struct {
	http        *http.Client
	name        string
	baseURL     string
	keyOptional bool
}

func NewOpenAIClient(name, baseURL string, hc *http.Client) *OpenAIClient {
	if hc == nil {
		hc = &http.Client{}
	}
	if name == "" {
		name = "openai"
	}
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	// A local llama server usually runs without auth.
	return &OpenAIClient{http: hc, name: name, baseURL: baseURL, keyOptional: name == "llama"}
}

func (c *OpenAIClient) Name() string { return c.name }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	if req.APIKey == "" && !c.keyOptional {
		return Response{}, fmt.Errorf("%s: %w", c.name, ErrMissingAPIKey)
	}

	var messages []openAIMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.UserText})

	payload := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	mergeOptions(payload, req.Options)

	headers := map[string]string{}
	if req.APIKey != "" {
		headers["Authorization"] = "Bearer " + req.APIKey
	}

	var r openAIChatResp
	if err := postJSON(ctx, c.http, c.name, endpoint(c.baseURL, "/chat/completions"), headers, payload, &r); err != nil {
		return Response{}, err
	}
	if len(r.Choices) == 0 {
		return Response{}, errors.New("no choices")
	}
	if r.Choices[0].FinishReason == "content_filter" {
		return Response{}, fmt.Errorf("%s: %w", c.name, ErrContentRefused)
	}
	text := r.Choices[0].Message.Content
	if text == "" {
		return Response{}, fmt.Errorf("%s: %w", c.name, ErrEmptyResponse)
	}

	return Response{
		Text:      text,
		TokensIn:  r.Usage.PromptTokens,
		TokensOut: r.Usage.CompletionTokens,
	}, nil
}
