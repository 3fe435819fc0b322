package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"mediflow/internal/diagnosis"
)

// MemoryStore is the in-memory session store used when no database is
// configured, and by tests. Concurrent writers to the same session are
// serialized by the store mutex; last writer wins per stage.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*diagnosis.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*diagnosis.Session)}
}

func (m *MemoryStore) Create(ctx context.Context, s *diagnosis.Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[s.ID]; exists {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.byID[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*diagnosis.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) UpdateStage(ctx context.Context, id string, stage diagnosis.Stage, rec diagnosis.StageRecord) error {
	if !diagnosis.KnownStage(stage) {
		return fmt.Errorf("unknown stage %q", stage)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	*s.Stages.Record(stage) = rec
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SetFinalResult(ctx context.Context, id string, res diagnosis.DiagnosisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	cloned := res
	s.Final = &cloned
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, id string, status diagnosis.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) History(ctx context.Context, userID string, limit int) ([]diagnosis.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []diagnosis.SessionSummary
	for _, s := range m.byID {
		if s.UserID != userID {
			continue
		}
		out = append(out, diagnosis.SessionSummary{
			SessionID: s.ID,
			Final:     cloneResult(s.Final),
			Status:    s.Status,
			CreatedAt: s.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) StatusCounts(ctx context.Context, since time.Time) (map[diagnosis.SessionStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[diagnosis.SessionStatus]int)
	for _, s := range m.byID {
		if s.CreatedAt.Before(since) {
			continue
		}
		counts[s.Status]++
	}
	return counts, nil
}

func cloneSession(s *diagnosis.Session) *diagnosis.Session {
	c := *s
	c.Final = cloneResult(s.Final)
	c.Stages.Translator.Result = cloneRaw(s.Stages.Translator.Result)
	c.Stages.SymptomAnalyzer.Result = cloneRaw(s.Stages.SymptomAnalyzer.Result)
	c.Stages.Researcher.Result = cloneRaw(s.Stages.Researcher.Result)
	c.Stages.RiskAssessor.Result = cloneRaw(s.Stages.RiskAssessor.Result)
	c.Stages.Aggregator.Result = cloneRaw(s.Stages.Aggregator.Result)
	return &c
}

func cloneResult(r *diagnosis.DiagnosisResult) *diagnosis.DiagnosisResult {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
