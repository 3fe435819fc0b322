package patient

import (
	"context"
	"testing"

	"mediflow/internal/diagnosis"
	"mediflow/internal/tester"
)

func TestMemoryStoreUpsertBackfillsOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec, err := store.UpsertDemographics(ctx, "u1", diagnosis.Demographics{Age: 34, Gender: "female", Location: "Nairobi"})
	tester.NoErr(t, err)
	tester.Eq(t, rec.Age, 34)
	tester.Eq(t, rec.Location, "Nairobi")

	// A later request with missing fields never clears what is known.
	rec, err = store.UpsertDemographics(ctx, "u1", diagnosis.Demographics{PriorConditions: []string{"asthma"}})
	tester.NoErr(t, err)
	tester.Eq(t, rec.Age, 34)
	tester.Eq(t, rec.Gender, "female")
	tester.Eq(t, rec.PriorConditions, []string{"asthma"})

	// New values do overwrite.
	rec, err = store.UpsertDemographics(ctx, "u1", diagnosis.Demographics{Location: "Mombasa"})
	tester.NoErr(t, err)
	tester.Eq(t, rec.Location, "Mombasa")
}

func TestMemoryStoreFindMissingIsNilNil(t *testing.T) {
	rec, err := NewMemoryStore().FindByUserID(context.Background(), "ghost")
	tester.NoErr(t, err)
	tester.True(t, rec == nil, "missing patient returns nil record, nil error")
}

func TestMemoryStoreUpsertRequiresUserID(t *testing.T) {
	_, err := NewMemoryStore().UpsertDemographics(context.Background(), "", diagnosis.Demographics{})
	tester.Err(t, err)
}

func TestCachedStoreServesFromCache(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryStore()
	cached, err := NewCachedStore(origin, 4)
	tester.NoErr(t, err)

	_, err = cached.UpsertDemographics(ctx, "u1", diagnosis.Demographics{Age: 50})
	tester.NoErr(t, err)

	rec, err := cached.FindByUserID(ctx, "u1")
	tester.NoErr(t, err)
	tester.Eq(t, rec.Age, 50)

	// Mutating the returned record must not poison the cache.
	rec.Age = 99
	again, err := cached.FindByUserID(ctx, "u1")
	tester.NoErr(t, err)
	tester.Eq(t, again.Age, 50)
}

func TestCachedStoreMissFallsThrough(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryStore()
	_, err := origin.UpsertDemographics(ctx, "direct", diagnosis.Demographics{Age: 20})
	tester.NoErr(t, err)

	cached, err := NewCachedStore(origin, 4)
	tester.NoErr(t, err)

	rec, err := cached.FindByUserID(ctx, "direct")
	tester.NoErr(t, err)
	tester.Eq(t, rec.Age, 20)

	missing, err := cached.FindByUserID(ctx, "nope")
	tester.NoErr(t, err)
	tester.True(t, missing == nil)
}
