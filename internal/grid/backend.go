package grid

import (
	"context"

	"github.com/google/uuid"

	"schedula/availability/internal/domain"
)

// Fetcher loads the confirmed availability for an inclusive date range.
type Fetcher interface {
	FetchRange(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error)
}

// BatchWriter upserts a whole batch. Each record is upserted by its own key,
// so replaying a batch must be harmless.
type BatchWriter interface {
	CommitBatch(ctx context.Context, batchID uuid.UUID, changes []domain.PendingChange) error
}

// Backend is the remote source of truth consumed by an editing session.
type Backend interface {
	Fetcher
	BatchWriter
}

// SingleWriter is the non-batched write path.
type SingleWriter interface {
	CommitOne(ctx context.Context, change domain.PendingChange) error
}
