package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"mediflow/internal/diagnosis"
	"mediflow/internal/tester"
)

func newSession(id, userID string, createdAt time.Time) *diagnosis.Session {
	return &diagnosis.Session{
		ID:        id,
		UserID:    userID,
		Input:     diagnosis.PatientInput{Symptoms: "fever"},
		Status:    diagnosis.SessionProcessing,
		CreatedAt: createdAt,
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newSession("s1", "u1", time.Now())
	tester.NoErr(t, store.Create(ctx, s))
	tester.Err(t, store.Create(ctx, s), "duplicate id is rejected")

	got, err := store.Get(ctx, "s1")
	tester.NoErr(t, err)
	tester.Eq(t, got.Input.Symptoms, "fever")

	// The stored copy is isolated from later caller mutation.
	s.Input.Symptoms = "changed"
	got, err = store.Get(ctx, "s1")
	tester.NoErr(t, err)
	tester.Eq(t, got.Input.Symptoms, "fever")

	_, err = store.Get(ctx, "missing")
	tester.Eq(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateStageOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tester.NoErr(t, store.Create(ctx, newSession("s1", "u1", time.Now())))

	started := time.Now()
	tester.NoErr(t, store.UpdateStage(ctx, "s1", diagnosis.StageTranslator, diagnosis.StageRecord{
		Status:    diagnosis.StageProcessing,
		StartedAt: &started,
	}))
	ended := time.Now()
	rec := diagnosis.StageRecord{
		Status:    diagnosis.StageCompleted,
		StartedAt: &started,
		EndedAt:   &ended,
		Result:    json.RawMessage(`{"translatedText":"fever"}`),
	}
	// Writing the completed record twice is idempotent.
	tester.NoErr(t, store.UpdateStage(ctx, "s1", diagnosis.StageTranslator, rec))
	tester.NoErr(t, store.UpdateStage(ctx, "s1", diagnosis.StageTranslator, rec))

	got, err := store.Get(ctx, "s1")
	tester.NoErr(t, err)
	tester.Eq(t, got.Stages.Translator.Status, diagnosis.StageCompleted)
	tester.Eq(t, string(got.Stages.Translator.Result), `{"translatedText":"fever"}`)

	tester.Err(t, store.UpdateStage(ctx, "s1", "bogus", rec), "unknown stage is rejected")
	tester.Eq(t, store.UpdateStage(ctx, "missing", diagnosis.StageTranslator, rec), ErrNotFound)
}

func TestMemoryStoreFinalResultAndStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tester.NoErr(t, store.Create(ctx, newSession("s1", "u1", time.Now())))

	res := diagnosis.DiagnosisResult{
		Primary:      diagnosis.Candidate{Condition: "Influenza", Confidence: 80},
		UrgencyLevel: diagnosis.UrgencyMedium,
	}
	tester.NoErr(t, store.SetFinalResult(ctx, "s1", res))
	tester.NoErr(t, store.SetStatus(ctx, "s1", diagnosis.SessionCompleted))

	got, err := store.Get(ctx, "s1")
	tester.NoErr(t, err)
	tester.Eq(t, got.Status, diagnosis.SessionCompleted)
	tester.Eq(t, got.Final.Primary.Condition, "Influenza")

	tester.Eq(t, store.SetFinalResult(ctx, "missing", res), ErrNotFound)
	tester.Eq(t, store.SetStatus(ctx, "missing", diagnosis.SessionError), ErrNotFound)
}

func TestMemoryStoreHistoryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()
	tester.NoErr(t, store.Create(ctx, newSession("old", "u1", base.Add(-2*time.Hour))))
	tester.NoErr(t, store.Create(ctx, newSession("mid", "u1", base.Add(-time.Hour))))
	tester.NoErr(t, store.Create(ctx, newSession("new", "u1", base)))
	tester.NoErr(t, store.Create(ctx, newSession("other", "u2", base)))

	out, err := store.History(ctx, "u1", 2)
	tester.NoErr(t, err)
	tester.Len(t, out, 2)
	tester.Eq(t, out[0].SessionID, "new")
	tester.Eq(t, out[1].SessionID, "mid")

	all, err := store.History(ctx, "u1", 0)
	tester.NoErr(t, err)
	tester.Len(t, all, 3)
}

func TestMemoryStoreStatusCounts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()
	tester.NoErr(t, store.Create(ctx, newSession("a", "u1", base)))
	tester.NoErr(t, store.Create(ctx, newSession("b", "u1", base)))
	tester.NoErr(t, store.Create(ctx, newSession("stale", "u1", base.Add(-48*time.Hour))))
	tester.NoErr(t, store.SetStatus(ctx, "b", diagnosis.SessionCompleted))

	counts, err := store.StatusCounts(ctx, base.Add(-time.Hour))
	tester.NoErr(t, err)
	tester.Eq(t, counts[diagnosis.SessionProcessing], 1)
	tester.Eq(t, counts[diagnosis.SessionCompleted], 1)
}
