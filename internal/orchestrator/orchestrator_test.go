package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediflow/internal/agents"
	"mediflow/internal/diagnosis"
	"mediflow/internal/tester"
	"mediflow/internal/watch"
)

type stageWrite struct {
	stage diagnosis.Stage
	rec   diagnosis.StageRecord
}

type fakeSessionWriter struct {
	mu     sync.Mutex
	writes []stageWrite
	err    error
}

func (f *fakeSessionWriter) UpdateStage(_ context.Context, _ string, stage diagnosis.Stage, rec diagnosis.StageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, stageWrite{stage: stage, rec: rec})
	return nil
}

type fakeMetrics struct {
	mu   sync.Mutex
	rows []diagnosis.AgentMetric
	err  error
}

func (f *fakeMetrics) Append(_ context.Context, rec diagnosis.AgentMetric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rec)
	return nil
}

func TestExecuteRecordsTransitionsAndMetric(t *testing.T) {
	sessions := &fakeSessionWriter{}
	metrics := &fakeMetrics{}
	o := New(sessions, metrics, nil)

	out, outcome, err := Execute(context.Background(), o, diagnosis.StageTranslator, "s1", "u1",
		func(ctx context.Context) (diagnosis.TranslationResult, agents.Outcome) {
			return diagnosis.TranslationResult{TranslatedText: "fever"},
				agents.Outcome{Model: "m1", LatencyMS: 12}
		})
	tester.NoErr(t, err)
	tester.False(t, outcome.Degraded)
	tester.Eq(t, out.TranslatedText, "fever")

	tester.Len(t, sessions.writes, 2)
	tester.Eq(t, sessions.writes[0].rec.Status, diagnosis.StageProcessing)
	tester.Eq(t, sessions.writes[1].rec.Status, diagnosis.StageCompleted)
	tester.True(t, sessions.writes[1].rec.Result != nil, "completed record carries the payload")
	tester.False(t, sessions.writes[1].rec.Degraded)

	tester.Len(t, metrics.rows, 1)
	m := metrics.rows[0]
	tester.Eq(t, m.Agent, diagnosis.StageTranslator)
	tester.Eq(t, m.SessionID, "s1")
	tester.True(t, m.Success, "degraded-free run is a success")
	tester.Eq(t, m.Model, "m1")
	tester.Eq(t, m.LatencyMS, int64(12))
}

func TestExecuteDegradedStillSucceeds(t *testing.T) {
	sessions := &fakeSessionWriter{}
	metrics := &fakeMetrics{}
	o := New(sessions, metrics, nil)

	_, outcome, err := Execute(context.Background(), o, diagnosis.StageRiskAssessor, "s1", "u1",
		func(ctx context.Context) (diagnosis.RiskAssessment, agents.Outcome) {
			return diagnosis.RiskAssessment{OverallRisk: diagnosis.UrgencyLow},
				agents.Outcome{Degraded: true, Reason: "llm transport: timeout"}
		})
	tester.NoErr(t, err, "fallback is not a stage failure")
	tester.True(t, outcome.Degraded)
	tester.True(t, sessions.writes[1].rec.Degraded, "stage record marks the fallback")

	m := metrics.rows[0]
	tester.True(t, m.Success)
	tester.Eq(t, m.Error, "llm transport: timeout")
}

func TestExecuteStoreFailureIsInfrastructure(t *testing.T) {
	boom := errors.New("db down")
	sessions := &fakeSessionWriter{err: boom}
	o := New(sessions, &fakeMetrics{}, nil)

	ran := false
	_, _, err := Execute(context.Background(), o, diagnosis.StageTranslator, "s1", "u1",
		func(ctx context.Context) (diagnosis.TranslationResult, agents.Outcome) {
			ran = true
			return diagnosis.TranslationResult{}, agents.Outcome{}
		})
	var infra *InfrastructureError
	tester.True(t, errors.As(err, &infra), "store failure surfaces as InfrastructureError")
	tester.True(t, errors.Is(err, boom))
	tester.False(t, ran, "task never runs when the processing write fails")
}

func TestExecuteMetricFailureIsInfrastructure(t *testing.T) {
	o := New(&fakeSessionWriter{}, &fakeMetrics{err: errors.New("metrics down")}, nil)
	_, _, err := Execute(context.Background(), o, diagnosis.StageTranslator, "s1", "u1",
		func(ctx context.Context) (diagnosis.TranslationResult, agents.Outcome) {
			return diagnosis.TranslationResult{TranslatedText: "x"}, agents.Outcome{}
		})
	var infra *InfrastructureError
	tester.True(t, errors.As(err, &infra))
}

func TestExecuteRejectsUnknownStage(t *testing.T) {
	o := New(&fakeSessionWriter{}, &fakeMetrics{}, nil)
	_, _, err := Execute(context.Background(), o, "bogus", "s1", "u1",
		func(ctx context.Context) (struct{}, agents.Outcome) {
			return struct{}{}, agents.Outcome{}
		})
	var infra *InfrastructureError
	tester.True(t, errors.As(err, &infra))
}

func TestExecutePublishesWatchEvents(t *testing.T) {
	hub := watch.NewHub()
	ch, cancel := hub.Subscribe("s1")
	defer cancel()

	o := New(&fakeSessionWriter{}, &fakeMetrics{}, hub)
	_, _, err := Execute(context.Background(), o, diagnosis.StageTranslator, "s1", "u1",
		func(ctx context.Context) (diagnosis.TranslationResult, agents.Outcome) {
			return diagnosis.TranslationResult{}, agents.Outcome{}
		})
	tester.NoErr(t, err)

	first := <-ch
	tester.Eq(t, first.Status, diagnosis.StageProcessing)
	second := <-ch
	tester.Eq(t, second.Status, diagnosis.StageCompleted)
}

func TestActiveAgentsTracksRunningStage(t *testing.T) {
	o := New(&fakeSessionWriter{}, &fakeMetrics{}, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = Execute(context.Background(), o, diagnosis.StageResearcher, "s1", "u1",
			func(ctx context.Context) (diagnosis.ResearchFindings, agents.Outcome) {
				close(started)
				<-release
				return diagnosis.ResearchFindings{}, agents.Outcome{}
			})
	}()

	<-started
	active := o.ActiveAgents()
	tester.Len(t, active, 1)
	tester.Eq(t, active[0].Agent, diagnosis.StageResearcher)
	tester.Eq(t, active[0].SessionID, "s1")

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("execute did not finish")
	}
	tester.Len(t, o.ActiveAgents(), 0)
}
