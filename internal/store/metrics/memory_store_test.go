package metrics

import (
	"context"
	"testing"
	"time"

	"mediflow/internal/diagnosis"
	"mediflow/internal/tester"
)

func TestMemoryStoreAggregate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	rows := []diagnosis.AgentMetric{
		{Agent: diagnosis.StageTranslator, StartedAt: now, ElapsedMS: 100, Success: true},
		{Agent: diagnosis.StageTranslator, StartedAt: now, ElapsedMS: 300, Success: false},
		{Agent: diagnosis.StageAggregator, StartedAt: now, ElapsedMS: 50, Success: true},
		// Outside the window; must be excluded.
		{Agent: diagnosis.StageTranslator, StartedAt: now.Add(-2 * time.Hour), ElapsedMS: 900, Success: false},
	}
	for _, r := range rows {
		tester.NoErr(t, store.Append(ctx, r))
	}

	out, err := store.Aggregate(ctx, now.Add(-time.Hour))
	tester.NoErr(t, err)
	tester.Len(t, out, 2)

	// Sorted by agent name: aggregator before translator.
	tester.Eq(t, out[0].Agent, diagnosis.StageAggregator)
	tester.Eq(t, out[0].Count, 1)
	tester.Eq(t, out[0].SuccessRatio, 1.0)

	tester.Eq(t, out[1].Agent, diagnosis.StageTranslator)
	tester.Eq(t, out[1].Count, 2)
	tester.Eq(t, out[1].AvgElapsedMS, 200.0)
	tester.Eq(t, out[1].SuccessRatio, 0.5)
}

func TestMemoryStoreAggregateEmpty(t *testing.T) {
	out, err := NewMemoryStore().Aggregate(context.Background(), time.Time{})
	tester.NoErr(t, err)
	tester.Len(t, out, 0)
}
