package patient

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"mediflow/internal/diagnosis"
)

// CachedStore layers an LRU cache over a patient store. Records change
// rarely (demographic backfill only), so reads dominate; the cache entry is
// replaced on every upsert.
type CachedStore struct {
	origin Store
	cache  *lru.Cache[string, *diagnosis.PatientRecord]
}

func NewCachedStore(origin Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, *diagnosis.PatientRecord](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{origin: origin, cache: cache}, nil
}

func (s *CachedStore) FindByUserID(ctx context.Context, userID string) (*diagnosis.PatientRecord, error) {
	if rec, ok := s.cache.Get(userID); ok {
		return cloneRecord(rec), nil
	}
	rec, err := s.origin.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		s.cache.Add(userID, cloneRecord(rec))
	}
	return rec, nil
}

func (s *CachedStore) UpsertDemographics(ctx context.Context, userID string, d diagnosis.Demographics) (*diagnosis.PatientRecord, error) {
	rec, err := s.origin.UpsertDemographics(ctx, userID, d)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		s.cache.Add(userID, cloneRecord(rec))
	}
	return rec, nil
}
