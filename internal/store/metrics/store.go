// Package metrics records one immutable row per stage execution,
// independently of the session document, for aggregate analytics.
package metrics

import (
	"context"
	"time"

	"mediflow/internal/diagnosis"
)

type Store interface {
	// Append records one stage execution. Rows are never mutated afterwards.
	Append(ctx context.Context, rec diagnosis.AgentMetric) error
	// Aggregate groups rows recorded since the given time by agent name,
	// computing count, average elapsed time, and success ratio.
	Aggregate(ctx context.Context, since time.Time) ([]diagnosis.AgentAggregate, error)
}
