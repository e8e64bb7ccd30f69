package store

import (
	"context"

	"github.com/google/uuid"

	"schedula/availability/internal/domain"
)

// AvailabilityTx is the set of writes available inside one locked calendar
// transaction.
type AvailabilityTx interface {
	UpsertAvailability(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error)

	FindBatch(ctx context.Context, batchID uuid.UUID) (domain.BatchReceipt, error)
	InsertBatch(ctx context.Context, receipt domain.BatchReceipt) error
}
