package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"mediflow/internal/diagnosis"
)

// MemoryStore is the append-only in-memory metric store.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []diagnosis.AgentMetric
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(ctx context.Context, rec diagnosis.AgentMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rec)
	return nil
}

func (m *MemoryStore) Aggregate(ctx context.Context, since time.Time) ([]diagnosis.AgentAggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type acc struct {
		count     int
		successes int
		elapsed   int64
	}
	byAgent := make(map[diagnosis.Stage]*acc)
	for _, r := range m.rows {
		if r.StartedAt.Before(since) {
			continue
		}
		a := byAgent[r.Agent]
		if a == nil {
			a = &acc{}
			byAgent[r.Agent] = a
		}
		a.count++
		a.elapsed += r.ElapsedMS
		if r.Success {
			a.successes++
		}
	}

	out := make([]diagnosis.AgentAggregate, 0, len(byAgent))
	for agent, a := range byAgent {
		out = append(out, diagnosis.AgentAggregate{
			Agent:        agent,
			Count:        a.count,
			AvgElapsedMS: float64(a.elapsed) / float64(a.count),
			SuccessRatio: float64(a.successes) / float64(a.count),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out, nil
}
