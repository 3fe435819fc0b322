package patient

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

type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const patientSchema = `
CREATE TABLE IF NOT EXISTS patient_records (
	user_id          TEXT PRIMARY KEY,
	age              INT NOT NULL DEFAULT 0,
	gender           TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	prior_conditions JSONB NOT NULL DEFAULT '[]',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
`

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.ExecContext(ctx, patientSchema)
	})
	return p.schemaErr
}

func (p *PostgresStore) FindByUserID(ctx context.Context, userID string) (*diagnosis.PatientRecord, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := p.db.QueryRowContext(ctx, `
		SELECT user_id, age, gender, location, prior_conditions, created_at, updated_at
		FROM patient_records WHERE user_id = $1`, userID)

	var rec diagnosis.PatientRecord
	var conditions []byte
	err := row.Scan(&rec.UserID, &rec.Age, &rec.Gender, &rec.Location, &conditions, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &rec.PriorConditions); err != nil {
		return nil, fmt.Errorf("decode prior conditions: %w", err)
	}
	return &rec, nil
}

func (p *PostgresStore) UpsertDemographics(ctx context.Context, userID string, d diagnosis.Demographics) (*diagnosis.PatientRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}

	existing, err := p.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if existing == nil {
		existing = &diagnosis.PatientRecord{UserID: userID, CreatedAt: now}
	}
	applyDemographics(existing, d)
	existing.UpdatedAt = now

	conditions, err := json.Marshal(existing.PriorConditions)
	if err != nil {
		return nil, err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO patient_records (user_id, age, gender, location, prior_conditions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			age = EXCLUDED.age,
			gender = EXCLUDED.gender,
			location = EXCLUDED.location,
			prior_conditions = EXCLUDED.prior_conditions,
			updated_at = EXCLUDED.updated_at`,
		existing.UserID, existing.Age, existing.Gender, existing.Location, conditions,
		existing.CreatedAt, existing.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return cloneRecord(existing), nil
}
