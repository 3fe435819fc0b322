// Package patient persists longitudinal demographic records keyed by user
// id. The pipeline reads them as translator context and only ever backfills
// demographic fields from a new request.
package patient

import (
	"context"

	"mediflow/internal/diagnosis"
)

type Store interface {
	// FindByUserID returns nil, nil when there is no record.
	FindByUserID(ctx context.Context, userID string) (*diagnosis.PatientRecord, error)
	// UpsertDemographics creates or updates the record, filling only fields
	// present in d, and returns the resulting record.
	UpsertDemographics(ctx context.Context, userID string, d diagnosis.Demographics) (*diagnosis.PatientRecord, error)
}
