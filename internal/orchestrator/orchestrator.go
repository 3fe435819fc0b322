// Package orchestrator wraps every stage invocation with timing, session
// stage transitions, and metric emission. It is an injected service object,
// constructed once at process start; the active-agent registry is owned by
// the instance, not global state.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"mediflow/internal/agents"
	"mediflow/internal/diagnosis"
	"mediflow/internal/watch"
)

// InfrastructureError marks a persistence failure inside the wrapper. It is
// the only error class allowed to propagate to the coordinator and abort a
// session.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure: %s: %v", e.Op, e.Err)
}
func (e *InfrastructureError) Unwrap() error { return e.Err }

// SessionWriter is the slice of the session store the orchestrator needs.
type SessionWriter interface {
	UpdateStage(ctx context.Context, id string, stage diagnosis.Stage, rec diagnosis.StageRecord) error
}

// MetricsAppender records one row per stage execution.
type MetricsAppender interface {
	Append(ctx context.Context, rec diagnosis.AgentMetric) error
}

// ActiveAgent is one in-flight stage execution, tracked for introspection.
// This is an observability aid, not a mutex: the same agent name may run
// concurrently for different sessions.
type ActiveAgent struct {
	Agent     diagnosis.Stage `json:"agent"`
	SessionID string          `json:"sessionId"`
	StartedAt time.Time       `json:"startedAt"`
}

type Orchestrator struct {
	sessions SessionWriter
	metrics  MetricsAppender
	hub      *watch.Hub

	mu     sync.Mutex
	active map[diagnosis.Stage]map[string]time.Time
}

// New builds an orchestrator. hub may be nil when no live observers exist.
func New(sessions SessionWriter, metrics MetricsAppender, hub *watch.Hub) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		metrics:  metrics,
		hub:      hub,
		active:   make(map[diagnosis.Stage]map[string]time.Time),
	}
}

// ActiveAgents snapshots every in-flight stage execution, ordered by agent
// then session id.
func (o *Orchestrator) ActiveAgents() []ActiveAgent {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []ActiveAgent
	for agent, sessions := range o.active {
		for sessionID, startedAt := range sessions {
			out = append(out, ActiveAgent{Agent: agent, SessionID: sessionID, StartedAt: startedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Agent != out[j].Agent {
			return out[i].Agent < out[j].Agent
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

func (o *Orchestrator) track(stage diagnosis.Stage, sessionID string, startedAt time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sessions, ok := o.active[stage]
	if !ok {
		sessions = make(map[string]time.Time)
		o.active[stage] = sessions
	}
	sessions[sessionID] = startedAt
}

func (o *Orchestrator) untrack(stage diagnosis.Stage, sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if sessions, ok := o.active[stage]; ok {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(o.active, stage)
		}
	}
}

func (o *Orchestrator) publish(ev watch.Event) {
	if o.hub != nil {
		o.hub.Publish(ev)
	}
}

// Execute runs one stage under the orchestrator's bookkeeping. The task is
// expected to absorb its own failures (agents never fail); any error
// returned here is an InfrastructureError from the wrapper itself and must
// abort the session.
func Execute[T any](ctx context.Context, o *Orchestrator, stage diagnosis.Stage, sessionID, userID string,
	task func(context.Context) (T, agents.Outcome)) (T, agents.Outcome, error) {

	var zero T
	if !diagnosis.KnownStage(stage) {
		return zero, agents.Outcome{}, &InfrastructureError{Op: "execute", Err: fmt.Errorf("unknown stage %q", stage)}
	}

	start := time.Now()
	o.track(stage, sessionID, start)
	defer o.untrack(stage, sessionID)

	if err := o.sessions.UpdateStage(ctx, sessionID, stage, diagnosis.StageRecord{
		Status:    diagnosis.StageProcessing,
		StartedAt: &start,
	}); err != nil {
		return zero, agents.Outcome{}, &InfrastructureError{Op: "mark stage processing", Err: err}
	}
	o.publish(watch.Event{SessionID: sessionID, Stage: stage, Status: diagnosis.StageProcessing})

	result, outcome := task(ctx)
	end := time.Now()

	payload, err := json.Marshal(result)
	if err != nil {
		return failStage[T](ctx, o, stage, sessionID, userID, start, end, outcome,
			&InfrastructureError{Op: "encode stage result", Err: err})
	}

	rec := diagnosis.StageRecord{
		Status:    diagnosis.StageCompleted,
		StartedAt: &start,
		EndedAt:   &end,
		Result:    payload,
		Degraded:  outcome.Degraded,
	}
	if err := o.sessions.UpdateStage(ctx, sessionID, stage, rec); err != nil {
		return failStage[T](ctx, o, stage, sessionID, userID, start, end, outcome,
			&InfrastructureError{Op: "mark stage completed", Err: err})
	}

	metric := diagnosis.AgentMetric{
		Agent:     stage,
		SessionID: sessionID,
		UserID:    userID,
		StartedAt: start,
		EndedAt:   end,
		ElapsedMS: end.Sub(start).Milliseconds(),
		Success:   true,
		Error:     outcome.Reason,
		Model:     outcome.Model,
		LatencyMS: outcome.LatencyMS,
	}
	if err := o.metrics.Append(ctx, metric); err != nil {
		return result, outcome, &InfrastructureError{Op: "append metric", Err: err}
	}

	o.publish(watch.Event{SessionID: sessionID, Stage: stage, Status: diagnosis.StageCompleted})
	return result, outcome, nil
}

// failStage records the error transition and metric before re-raising. The
// bookkeeping writes are best-effort: the original infrastructure error is
// what propagates.
func failStage[T any](ctx context.Context, o *Orchestrator, stage diagnosis.Stage, sessionID, userID string,
	start, end time.Time, outcome agents.Outcome, infraErr error) (T, agents.Outcome, error) {

	var zero T
	_ = o.sessions.UpdateStage(ctx, sessionID, stage, diagnosis.StageRecord{
		Status:    diagnosis.StageError,
		StartedAt: &start,
		EndedAt:   &end,
		Error:     infraErr.Error(),
	})
	_ = o.metrics.Append(ctx, diagnosis.AgentMetric{
		Agent:     stage,
		SessionID: sessionID,
		UserID:    userID,
		StartedAt: start,
		EndedAt:   end,
		ElapsedMS: end.Sub(start).Milliseconds(),
		Success:   false,
		Error:     infraErr.Error(),
		Model:     outcome.Model,
		LatencyMS: outcome.LatencyMS,
	})
	o.publish(watch.Event{SessionID: sessionID, Stage: stage, Status: diagnosis.StageError, Error: infraErr.Error()})
	return zero, outcome, infraErr
}
