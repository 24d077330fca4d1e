package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	AnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
	// The messages API rejects requests without max_tokens.
	anthropicMaxTokens = 1024
)

type AnthropicClient struct {
	http    *http.Client
	baseURL string
}

func NewAnthropicClient(baseURL string, hc *http.Client) *AnthropicClient {
	if hc == nil {
		hc = &http.Client{}
	}
	if baseURL == "" {
		baseURL = AnthropicBaseURL
	}
	return &AnthropicClient{http: hc, baseURL: baseURL}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMsgResp struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	if req.APIKey == "" {
		return Response{}, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}
	payload := map[string]any{
		"model":       req.Model,
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
		"messages":    []anthropicMessage{{Role: "user", Content: req.UserText}},
	}
	if req.SystemPrompt != "" {
		payload["system"] = req.SystemPrompt
	}
	mergeOptions(payload, req.Options)

	headers := map[string]string{
		"x-api-key":         req.APIKey,
		"anthropic-version": anthropicVersion,
	}
	var r anthropicMsgResp
	if err := postJSON(ctx, c.http, c.Name(), endpoint(c.baseURL, "/messages"), headers, payload, &r); err != nil {
		return Response{}, err
	}
	if r.StopReason == "refusal" {
		return Response{}, fmt.Errorf("anthropic: %w", ErrContentRefused)
	}

	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return Response{}, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}
	return Response{
		Text:      sb.String(),
		TokensIn:  r.Usage.InputTokens,
		TokensOut: r.Usage.OutputTokens,
	}, nil
}
