package llmclient

import (
	"context"
	"errors"
	"strings"
	"time"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client. It only
// covers the API call itself; timeouts and cross-cutting concerns are applied
// via middleware.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ConfigError{Reason: "gemini api key is empty"}
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string     { return "Gemini:" + g.model }
func (g *GeminiClient) Configured() bool { return true }
func (g *GeminiClient) Close() error     { return nil }

func (g *GeminiClient) Generate(ctx context.Context, messages []Message, model string) (Response, error) {
	if len(messages) == 0 {
		return Response{}, &ConfigError{Reason: "prompt messages are empty"}
	}
	if strings.TrimSpace(model) == "" {
		model = g.model
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	start := time.Now()
	resp, err := g.cli.Models.GenerateContent(ctx, model, contents,
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return Response{}, &UpstreamError{Status: apiErr.Code, Message: apiErr.Message}
		}
		return Response{}, &TransportError{Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Response{}, &UpstreamError{Status: 200, Message: "empty candidate from model"}
	}
	return Response{
		Text:      resp.Candidates[0].Content.Parts[0].Text,
		ElapsedMS: elapsed,
	}, nil
}
