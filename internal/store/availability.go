package store

import (
	"context"

	"schedula/availability/internal/domain"
)

type AvailabilityRepository interface {
	// ListRange returns every stored record with rangeStart <= date <= rangeEnd.
	ListRange(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error)
	// UpsertBatch applies all records or none. Replaying a batch id with the
	// same payload returns the original count without writing.
	UpsertBatch(ctx context.Context, batch domain.Batch) (int, error)
	Upsert(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error)
}
