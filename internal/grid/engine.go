package grid

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"schedula/availability/internal/domain"
)

type CommitResult struct {
	// NoOp is set when there was nothing to commit and the backend was not contacted.
	NoOp    bool
	Applied int
	BatchID uuid.UUID
}

// Engine is the only writer of the backend and the only component that
// folds pending changes into the store.
type Engine struct {
	backend  BatchWriter
	log      *slog.Logger
	inFlight atomic.Bool
	newID    func() (uuid.UUID, error)
}

func NewEngine(backend BatchWriter, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		backend: backend,
		log:     log.With(slog.String("component", "grid.engine")),
		newID:   uuid.NewV7,
	}
}

// Commit sends a snapshot of the ledger as one batch. Edits staged while the
// request is outstanding are not part of it and stay pending. On failure the
// ledger and store are left exactly as they were.
func (e *Engine) Commit(ctx context.Context, ledger *Ledger, store *Store) (CommitResult, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return CommitResult{}, ErrCommitInFlight
	}
	defer e.inFlight.Store(false)

	changes := ledger.All()
	if len(changes) == 0 {
		return CommitResult{NoOp: true}, nil
	}

	batchID, err := e.newID()
	if err != nil {
		return CommitResult{}, &CommitError{Count: len(changes), Err: err}
	}

	log := e.log.With(slog.String("batch_id", batchID.String()), slog.Int("count", len(changes)))
	log.Debug("committing batch")

	if err := e.backend.CommitBatch(ctx, batchID, changes); err != nil {
		log.Warn("batch commit failed", slog.Any("err", err))
		return CommitResult{}, &CommitError{Count: len(changes), Err: err}
	}

	store.ApplyConfirmed(changes)
	ledger.Settle(changes)

	log.Info("batch committed")
	return CommitResult{Applied: len(changes), BatchID: batchID}, nil
}

// CommitOne writes a single change immediately, bypassing the ledger. The
// store only changes after the backend confirms, so a failure needs no revert.
func (e *Engine) CommitOne(ctx context.Context, writer SingleWriter, store *Store, change domain.PendingChange) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrCommitInFlight
	}
	defer e.inFlight.Store(false)

	if err := writer.CommitOne(ctx, change); err != nil {
		e.log.Warn("single commit failed", slog.String("key", change.Key().String()), slog.Any("err", err))
		return &CommitError{Count: 1, Err: err}
	}
	store.ApplyConfirmed([]domain.PendingChange{change})
	return nil
}

// Discard drops every pending change and resynchronizes through reload.
func (e *Engine) Discard(ctx context.Context, ledger *Ledger, reload func(ctx context.Context) error) error {
	dropped := ledger.Len()
	ledger.Clear()
	e.log.Info("pending changes discarded", slog.Int("count", dropped))
	if reload == nil {
		return nil
	}
	return reload(ctx)
}

func (e *Engine) InFlight() bool {
	return e.inFlight.Load()
}
