package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultChatCompletionsURL = "https://api.groq.com/openai/v1/chat/completions"

// ChatClient calls an OpenAI-compatible chat completions endpoint and asks
// for JSON output.
type ChatClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

func NewChatClient(apiKey, model, baseURL string) (*ChatClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ConfigError{Reason: "chat api key is empty"}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultChatCompletionsURL
	}
	if strings.TrimSpace(model) == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &ChatClient{
		http:    &http.Client{Timeout: 60 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
	}, nil
}

func (c *ChatClient) Name() string     { return "Chat:" + c.model }
func (c *ChatClient) Configured() bool { return true }
func (c *ChatClient) Close() error     { return nil }

type chatReq struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Generate(ctx context.Context, messages []Message, model string) (Response, error) {
	if len(messages) == 0 {
		return Response{}, &ConfigError{Reason: "prompt messages are empty"}
	}
	if strings.TrimSpace(model) == "" {
		model = c.model
	}

	body, _ := json.Marshal(chatReq{
		Model:          model,
		Messages:       messages,
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		const max = 2048
		if len(raw) > max {
			raw = raw[:max]
		}
		return Response{}, &UpstreamError{Status: resp.StatusCode, Message: string(raw)}
	}

	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, &UpstreamError{Status: resp.StatusCode, Message: "undecodable response body: " + err.Error()}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return Response{}, &UpstreamError{Status: resp.StatusCode, Message: "no choices in response"}
	}
	return Response{Text: out.Choices[0].Message.Content, ElapsedMS: elapsed}, nil
}
