// Package session persists diagnosis sessions. Writes are idempotent per
// (session id, stage): a later write for the same stage overwrites, it does
// not append. The store is the source of truth for per-stage progress.
package session

import (
	"context"
	"errors"
	"time"

	"mediflow/internal/diagnosis"
)

var ErrNotFound = errors.New("session not found")

type Store interface {
	Create(ctx context.Context, s *diagnosis.Session) error
	Get(ctx context.Context, id string) (*diagnosis.Session, error)
	// UpdateStage overwrites the named stage's record. Unknown stages are
	// rejected.
	UpdateStage(ctx context.Context, id string, stage diagnosis.Stage, rec diagnosis.StageRecord) error
	SetFinalResult(ctx context.Context, id string, res diagnosis.DiagnosisResult) error
	SetStatus(ctx context.Context, id string, status diagnosis.SessionStatus) error
	// History returns the user's sessions newest-first, bounded by limit.
	History(ctx context.Context, userID string, limit int) ([]diagnosis.SessionSummary, error)
	// StatusCounts groups sessions created since the given time by status.
	StatusCounts(ctx context.Context, since time.Time) (map[diagnosis.SessionStatus]int, error)
}
