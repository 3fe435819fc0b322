package metrics

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mediflow/internal/diagnosis"
)

// PostgresStore appends metric rows to a plain table; there is no update
// path by design.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const metricsSchema = `
CREATE TABLE IF NOT EXISTS agent_metrics (
	id          BIGSERIAL PRIMARY KEY,
	agent       TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	elapsed_ms  BIGINT NOT NULL,
	success     BOOLEAN NOT NULL,
	error_text  TEXT NOT NULL DEFAULT '',
	model       TEXT NOT NULL DEFAULT '',
	latency_ms  BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS agent_metrics_agent_started_idx
	ON agent_metrics (agent, started_at);
`

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.ExecContext(ctx, metricsSchema)
	})
	return p.schemaErr
}

func (p *PostgresStore) Append(ctx context.Context, rec diagnosis.AgentMetric) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO agent_metrics
			(agent, session_id, user_id, started_at, ended_at, elapsed_ms, success, error_text, model, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.Agent, rec.SessionID, rec.UserID, rec.StartedAt, rec.EndedAt,
		rec.ElapsedMS, rec.Success, rec.Error, rec.Model, rec.LatencyMS)
	return err
}

func (p *PostgresStore) Aggregate(ctx context.Context, since time.Time) ([]diagnosis.AgentAggregate, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT agent,
		       COUNT(*),
		       AVG(elapsed_ms),
		       AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END)
		FROM agent_metrics
		WHERE started_at >= $1
		GROUP BY agent
		ORDER BY agent`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []diagnosis.AgentAggregate
	for rows.Next() {
		var agg diagnosis.AgentAggregate
		if err := rows.Scan(&agg.Agent, &agg.Count, &agg.AvgElapsedMS, &agg.SuccessRatio); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}
