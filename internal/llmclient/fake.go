package llmclient

import (
	"context"
	"strings"
	"sync"
	"time"
)

// FakeClient returns scripted responses for offline runs and tests.
// Responses are consumed in order per matching substring of the system
// prompt; Err, when set, is returned instead.
type FakeClient struct {
	mu    sync.Mutex
	Calls int

	// Script maps a substring of the first message's content to a reply.
	Script map[string]FakeReply
	// Default is used when no script entry matches.
	Default FakeReply
	// Latency is slept per call (subject to ctx cancellation).
	Latency time.Duration
	// NotConfigured makes Configured() report false.
	NotConfigured bool
}

type FakeReply struct {
	Text string
	Err  error
}

func (f *FakeClient) Name() string     { return "FakeLLM" }
func (f *FakeClient) Configured() bool { return !f.NotConfigured }
func (f *FakeClient) Close() error     { return nil }

func (f *FakeClient) Generate(ctx context.Context, messages []Message, model string) (Response, error) {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()

	if len(messages) == 0 {
		return Response{}, &ConfigError{Reason: "prompt messages are empty"}
	}
	if f.Latency > 0 {
		select {
		case <-time.After(f.Latency):
		case <-ctx.Done():
			return Response{}, &TransportError{Err: ctx.Err()}
		}
	}

	reply := f.Default
	for needle, r := range f.Script {
		if containsAny(messages, needle) {
			reply = r
			break
		}
	}
	if reply.Err != nil {
		return Response{}, reply.Err
	}
	if reply.Text == "" {
		reply.Text = "{}"
	}
	return Response{Text: reply.Text, ElapsedMS: f.Latency.Milliseconds()}, nil
}

func containsAny(messages []Message, needle string) bool {
	if needle == "" {
		return false
	}
	for _, m := range messages {
		if strings.Contains(m.Content, needle) {
			return true
		}
	}
	return false
}
