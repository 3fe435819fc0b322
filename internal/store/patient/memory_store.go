package patient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mediflow/internal/diagnosis"
)

type MemoryStore struct {
	mu       sync.RWMutex
	byUserID map[string]*diagnosis.PatientRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUserID: make(map[string]*diagnosis.PatientRecord)}
}

func (m *MemoryStore) FindByUserID(ctx context.Context, userID string) (*diagnosis.PatientRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byUserID[userID]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (m *MemoryStore) UpsertDemographics(ctx context.Context, userID string, d diagnosis.Demographics) (*diagnosis.PatientRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	rec, ok := m.byUserID[userID]
	if !ok {
		rec = &diagnosis.PatientRecord{UserID: userID, CreatedAt: now}
		m.byUserID[userID] = rec
	}
	applyDemographics(rec, d)
	rec.UpdatedAt = now
	return cloneRecord(rec), nil
}

// applyDemographics backfills only the fields the request supplied; existing
// values are never cleared.
func applyDemographics(rec *diagnosis.PatientRecord, d diagnosis.Demographics) {
	if d.Age > 0 {
		rec.Age = d.Age
	}
	if d.Gender != "" {
		rec.Gender = d.Gender
	}
	if d.Location != "" {
		rec.Location = d.Location
	}
	if len(d.PriorConditions) > 0 {
		rec.PriorConditions = append([]string(nil), d.PriorConditions...)
	}
}

func cloneRecord(rec *diagnosis.PatientRecord) *diagnosis.PatientRecord {
	c := *rec
	c.PriorConditions = append([]string(nil), rec.PriorConditions...)
	return &c
}
