package llmclient

import (
	"context"
	"fmt"
)

// Message is one ordered role/content element of a prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response carries the generated text plus call timing.
type Response struct {
	Text      string
	ElapsedMS int64
}

// Client makes a single call to a text-generation service. Implementations
// must be safe for concurrent use. No retries happen at this layer; retry
// policy, if any, belongs to the caller.
type Client interface {
	Name() string
	// Generate sends the ordered messages to the service. model overrides the
	// client's default model when non-empty.
	Generate(ctx context.Context, messages []Message, model string) (Response, error)
	// Configured reports whether a credential is present. Callers use this to
	// distinguish live results from forced-fallback runs.
	Configured() bool
	Close() error
}

// ConfigError means a required credential or setting is missing.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "llm config: " + e.Reason }

// TransportError wraps network and timeout failures talking to the service.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "llm transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError means the service responded with a non-success status.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm upstream: status %d: %s", e.Status, e.Message)
}

// Unconfigured returns a client whose calls always fail with a ConfigError.
// It stands in when no reasoning credential is configured, forcing every
// agent onto its deterministic fallback path.
func Unconfigured(reason string) Client {
	return unconfigured{reason: reason}
}

type unconfigured struct{ reason string }

func (u unconfigured) Name() string     { return "unconfigured" }
func (u unconfigured) Configured() bool { return false }
func (u unconfigured) Close() error     { return nil }

func (u unconfigured) Generate(ctx context.Context, messages []Message, model string) (Response, error) {
	return Response{}, &ConfigError{Reason: u.reason}
}
