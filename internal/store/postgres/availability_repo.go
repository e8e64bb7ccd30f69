package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"schedula/availability/internal/domain"
	"schedula/availability/internal/store"
)

// availabilityLockKey serializes writers of the single shared calendar.
const availabilityLockKey = "schedula:availability"

type AvailabilityRepo struct {
	db *bun.DB
}

func NewAvailabilityRepo(db *bun.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

type availabilityTx struct {
	tx bun.Tx
}

func (r *AvailabilityRepo) ListRange(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
	return selectRange(ctx, r.db, rangeStart, rangeEnd)
}

func selectRange(ctx context.Context, db bun.IDB, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
	rows := make([]domain.AvailabilityRecord, 0)
	err := db.NewSelect().
		Model(&rows).
		Where("date >= ?", rangeStart).
		Where("date <= ?", rangeEnd).
		OrderExpr("date ASC, slot_start ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AvailabilityRepo) UpsertBatch(ctx context.Context, batch domain.Batch) (int, error) {
	var applied int
	err := r.InTransaction(ctx, func(ctx context.Context, tx store.AvailabilityTx) error {
		n, err := applyBatch(ctx, tx, batch)
		if err != nil {
			return err
		}
		applied = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

func (r *AvailabilityRepo) Upsert(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error) {
	var out domain.AvailabilityRecord
	err := r.InTransaction(ctx, func(ctx context.Context, tx store.AvailabilityTx) error {
		saved, err := tx.UpsertAvailability(ctx, rec)
		if err != nil {
			return err
		}
		out = saved
		return nil
	})
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}
	return out, nil
}

func (r *AvailabilityRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.AvailabilityTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockAvailability(ctx, tx); err != nil {
			return err
		}
		return fn(ctx, availabilityTx{tx: tx})
	})
}

func lockAvailability(ctx context.Context, tx bun.Tx) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", availabilityLockKey).Exec(ctx)
	return err
}

// applyBatch writes every record of batch unless the batch id was seen
// before. A replay with the same payload reports the original count; a
// replay with a different payload is an idempotency conflict.
func applyBatch(ctx context.Context, tx store.AvailabilityTx, batch domain.Batch) (int, error) {
	fingerprint := batch.Fingerprint()

	if batch.ID != uuid.Nil {
		existing, err := tx.FindBatch(ctx, batch.ID)
		switch {
		case err == nil:
			if existing.Fingerprint != fingerprint {
				return 0, store.ErrIdempotencyConflict
			}
			return existing.Applied, nil
		case !errors.Is(err, store.ErrNotFound):
			return 0, err
		}
	}

	for _, rec := range batch.Records {
		if _, err := tx.UpsertAvailability(ctx, rec); err != nil {
			return 0, err
		}
	}

	if batch.ID != uuid.Nil {
		err := tx.InsertBatch(ctx, domain.BatchReceipt{
			ID:          batch.ID,
			Fingerprint: fingerprint,
			Applied:     len(batch.Records),
		})
		if err != nil {
			return 0, err
		}
	}
	return len(batch.Records), nil
}

func (r availabilityTx) UpsertAvailability(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error) {
	m := domain.AvailabilityRecord{
		Date:      rec.Date,
		SlotStart: rec.SlotStart,
		IsOpen:    rec.IsOpen,
	}

	_, err := r.tx.NewInsert().
		Model(&m).
		On("CONFLICT (date, slot_start) DO UPDATE").
		Set("is_open = EXCLUDED.is_open").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}
	return m, nil
}

func (r availabilityTx) FindBatch(ctx context.Context, batchID uuid.UUID) (domain.BatchReceipt, error) {
	var receipt domain.BatchReceipt
	err := r.tx.NewSelect().
		Model(&receipt).
		Where("id = ?", batchID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BatchReceipt{}, store.ErrNotFound
		}
		return domain.BatchReceipt{}, err
	}
	return receipt, nil
}

func (r availabilityTx) InsertBatch(ctx context.Context, receipt domain.BatchReceipt) error {
	m := receipt
	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	return err
}
