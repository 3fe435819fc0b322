package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mediflow/internal/diagnosis"
	"mediflow/internal/tester"
)

type recorder struct {
	mu    sync.Mutex
	order []diagnosis.Stage
}

func (r *recorder) mark(name diagnosis.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

func (r *recorder) index(name diagnosis.Stage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

func stage(name diagnosis.Stage, rec *recorder, requires ...diagnosis.Stage) StageSpec {
	return StageSpec{
		Name:     name,
		Requires: requires,
		Run: func(ctx context.Context) error {
			rec.mark(name)
			return nil
		},
	}
}

func TestRunRespectsDependencyOrder(t *testing.T) {
	rec := &recorder{}
	err := Run(context.Background(), []StageSpec{
		stage(diagnosis.StageTranslator, rec),
		stage(diagnosis.StageSymptomAnalyzer, rec, diagnosis.StageTranslator),
		stage(diagnosis.StageResearcher, rec, diagnosis.StageSymptomAnalyzer),
		stage(diagnosis.StageRiskAssessor, rec, diagnosis.StageSymptomAnalyzer),
		stage(diagnosis.StageAggregator, rec, diagnosis.StageResearcher, diagnosis.StageRiskAssessor),
	})
	tester.NoErr(t, err)
	tester.Len(t, rec.order, 5)

	tester.True(t, rec.index(diagnosis.StageTranslator) < rec.index(diagnosis.StageSymptomAnalyzer), "translator first")
	tester.True(t, rec.index(diagnosis.StageSymptomAnalyzer) < rec.index(diagnosis.StageResearcher), "analyzer before researcher")
	tester.True(t, rec.index(diagnosis.StageSymptomAnalyzer) < rec.index(diagnosis.StageRiskAssessor), "analyzer before risk")
	tester.True(t, rec.index(diagnosis.StageAggregator) == 4, "aggregator joins last")
}

func TestRunParallelBranchesOverlap(t *testing.T) {
	// Two 100ms branches off one root: well under 200ms total means they ran
	// concurrently.
	var root StageSpec
	rec := &recorder{}
	root = stage(diagnosis.StageTranslator, rec)
	slow := func(name diagnosis.Stage) StageSpec {
		return StageSpec{
			Name:     name,
			Requires: []diagnosis.Stage{diagnosis.StageTranslator},
			Run: func(ctx context.Context) error {
				time.Sleep(100 * time.Millisecond)
				return nil
			},
		}
	}

	start := time.Now()
	err := Run(context.Background(), []StageSpec{
		root,
		slow(diagnosis.StageResearcher),
		slow(diagnosis.StageRiskAssessor),
	})
	elapsed := time.Since(start)
	tester.NoErr(t, err)
	tester.True(t, elapsed < 180*time.Millisecond, "branches ran in parallel")
}

func TestRunFailureSkipsDependents(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("stage blew up")
	err := Run(context.Background(), []StageSpec{
		{
			Name: diagnosis.StageTranslator,
			Run:  func(ctx context.Context) error { return boom },
		},
		stage(diagnosis.StageSymptomAnalyzer, rec, diagnosis.StageTranslator),
		stage(diagnosis.StageAggregator, rec, diagnosis.StageSymptomAnalyzer),
	})
	tester.True(t, errors.Is(err, boom), "root cause surfaces")
	tester.Len(t, rec.order, 0)
}

func TestRunRejectsUnknownDependency(t *testing.T) {
	err := Run(context.Background(), []StageSpec{
		{Name: diagnosis.StageAggregator, Requires: []diagnosis.Stage{"phantom"}, Run: func(ctx context.Context) error { return nil }},
	})
	tester.Err(t, err)
	tester.True(t, strings.Contains(err.Error(), "unknown stage"), "names the missing dependency")
}

func TestRunRejectsCycle(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }
	err := Run(context.Background(), []StageSpec{
		{Name: diagnosis.StageTranslator, Requires: []diagnosis.Stage{diagnosis.StageAggregator}, Run: noop},
		{Name: diagnosis.StageAggregator, Requires: []diagnosis.Stage{diagnosis.StageTranslator}, Run: noop},
	})
	tester.Err(t, err)
	tester.True(t, strings.Contains(err.Error(), "cycle"), "reports the cycle")
}

func TestRunRejectsDuplicateStage(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }
	err := Run(context.Background(), []StageSpec{
		{Name: diagnosis.StageTranslator, Run: noop},
		{Name: diagnosis.StageTranslator, Run: noop},
	})
	tester.Err(t, err)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, []StageSpec{
		{Name: diagnosis.StageTranslator, Run: func(ctx context.Context) error {
			time.Sleep(50 * time.Millisecond)
			return ctx.Err()
		}},
		{Name: diagnosis.StageAggregator, Requires: []diagnosis.Stage{diagnosis.StageTranslator}, Run: func(ctx context.Context) error {
			return nil
		}},
	})
	tester.True(t, errors.Is(err, context.Canceled), "cancellation propagates")
}
