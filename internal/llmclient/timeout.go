package llmclient

import (
	"context"
	"errors"
	"time"
)

// WithTimeout applies a per-call deadline. A call that outlives the deadline
// is reported as a TransportError, so the owning agent falls back; a hung
// call degrades that one agent only.
func WithTimeout(base Client, d time.Duration) Client {
	if d <= 0 {
		return base
	}
	return &timed{base: base, d: d}
}

type timed struct {
	base Client
	d    time.Duration
}

func (t *timed) Name() string     { return t.base.Name() }
func (t *timed) Configured() bool { return t.base.Configured() }
func (t *timed) Close() error     { return t.base.Close() }

func (t *timed) Generate(ctx context.Context, messages []Message, model string) (Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	resp, err := t.base.Generate(callCtx, messages, model)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return Response{}, &TransportError{Err: context.DeadlineExceeded}
	}
	return resp, err
}
