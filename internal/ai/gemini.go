package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiClient struct {
	http    *http.Client
	baseURL string
}

func NewGeminiClient(baseURL string, hc *http.Client) *GeminiClient {
	if hc == nil {
		hc = &http.Client{}
	}
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	return &GeminiClient{http: hc, baseURL: baseURL}
}

func (c *GeminiClient) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiResp struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	if req.APIKey == "" {
		return Response{}, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	genCfg := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		genCfg["maxOutputTokens"] = req.MaxTokens
	}
	payload := map[string]any{
		"contents":         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.UserText}}}},
		"generationConfig": genCfg,
	}
	if req.SystemPrompt != "" {
		payload["systemInstruction"] = geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	mergeOptions(payload, req.Options)

	model := strings.TrimPrefix(req.Model, "models/")
	u := endpoint(c.baseURL, "/models/"+url.PathEscape(model)+":generateContent")
	headers := map[string]string{"x-goog-api-key": req.APIKey}

	var r geminiResp
	if err := postJSON(ctx, c.http, c.Name(), u, headers, payload, &r); err != nil {
		return Response{}, err
	}
	if r.PromptFeedback.BlockReason != "" {
		return Response{}, fmt.Errorf("gemini: %s: %w", r.PromptFeedback.BlockReason, ErrContentRefused)
	}
	if len(r.Candidates) == 0 {
		return Response{}, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	cand := r.Candidates[0]
	if cand.FinishReason == "SAFETY" {
		return Response{}, fmt.Errorf("gemini: %w", ErrContentRefused)
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return Response{}, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return Response{
		Text:      sb.String(),
		TokensIn:  r.UsageMetadata.PromptTokenCount,
		TokensOut: r.UsageMetadata.CandidatesTokenCount,
	}, nil
}
