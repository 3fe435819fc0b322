package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mediflow/internal/diagnosis"
)

// PostgresStore persists sessions in a single table with JSONB payloads.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS diagnosis_sessions (
	session_id   TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL DEFAULT '',
	patient_id   TEXT NOT NULL DEFAULT '',
	input        JSONB NOT NULL,
	stages       JSONB NOT NULL,
	final_result JSONB,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS diagnosis_sessions_user_created_idx
	ON diagnosis_sessions (user_id, created_at DESC);
`

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.ExecContext(ctx, sessionSchema)
	})
	return p.schemaErr
}

func (p *PostgresStore) Create(ctx context.Context, s *diagnosis.Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	input, err := json.Marshal(s.Input)
	if err != nil {
		return err
	}
	stages, err := json.Marshal(s.Stages)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO diagnosis_sessions
			(session_id, user_id, patient_id, input, stages, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.PatientID, input, stages, s.Status, s.CreatedAt, s.UpdatedAt)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*diagnosis.Session, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := p.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, patient_id, input, stages, final_result, status, created_at, updated_at
		FROM diagnosis_sessions WHERE session_id = $1`, id)

	var s diagnosis.Session
	var input, stages []byte
	var final sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.PatientID, &input, &stages, &final, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(input, &s.Input); err != nil {
		return nil, fmt.Errorf("decode session input: %w", err)
	}
	if err := json.Unmarshal(stages, &s.Stages); err != nil {
		return nil, fmt.Errorf("decode session stages: %w", err)
	}
	if final.Valid && final.String != "" {
		var res diagnosis.DiagnosisResult
		if err := json.Unmarshal([]byte(final.String), &res); err != nil {
			return nil, fmt.Errorf("decode final result: %w", err)
		}
		s.Final = &res
	}
	return &s, nil
}

// UpdateStage rewrites one slot of the stages document inside a transaction,
// so concurrent writers to different stages of the same session cannot lose
// each other's records.
func (p *PostgresStore) UpdateStage(ctx context.Context, id string, stage diagnosis.Stage, rec diagnosis.StageRecord) error {
	if !diagnosis.KnownStage(stage) {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT stages FROM diagnosis_sessions WHERE session_id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var stages diagnosis.StageSet
	if err := json.Unmarshal(raw, &stages); err != nil {
		return fmt.Errorf("decode session stages: %w", err)
	}
	*stages.Record(stage) = rec
	updated, err := json.Marshal(stages)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE diagnosis_sessions SET stages = $2, updated_at = $3 WHERE session_id = $1`,
		id, updated, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) SetFinalResult(ctx context.Context, id string, res diagnosis.DiagnosisResult) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	final, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return p.exec(ctx,
		`UPDATE diagnosis_sessions SET final_result = $2, updated_at = $3 WHERE session_id = $1`,
		id, final, time.Now())
}

func (p *PostgresStore) SetStatus(ctx context.Context, id string, status diagnosis.SessionStatus) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	return p.exec(ctx,
		`UPDATE diagnosis_sessions SET status = $2, updated_at = $3 WHERE session_id = $1`,
		id, status, time.Now())
}

func (p *PostgresStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) History(ctx context.Context, userID string, limit int) ([]diagnosis.SessionSummary, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT session_id, final_result, status, created_at
		FROM diagnosis_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []diagnosis.SessionSummary
	for rows.Next() {
		var sum diagnosis.SessionSummary
		var final sql.NullString
		if err := rows.Scan(&sum.SessionID, &final, &sum.Status, &sum.CreatedAt); err != nil {
			return nil, err
		}
		if final.Valid && final.String != "" {
			var res diagnosis.DiagnosisResult
			if err := json.Unmarshal([]byte(final.String), &res); err != nil {
				return nil, fmt.Errorf("decode final result: %w", err)
			}
			sum.Final = &res
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (p *PostgresStore) StatusCounts(ctx context.Context, since time.Time) (map[diagnosis.SessionStatus]int, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM diagnosis_sessions
		WHERE created_at >= $1
		GROUP BY status`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[diagnosis.SessionStatus]int)
	for rows.Next() {
		var status diagnosis.SessionStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
