package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"schedula/availability/internal/domain"
	"schedula/availability/internal/observability/metrics"
	"schedula/availability/internal/store"
)

var tracer = otel.Tracer("schedula.internal.service.availability")

// MaxRangeDays bounds a single range read.
const MaxRangeDays = 366

const maxIdempotencyKeyLen = 256

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Service struct {
	repo    store.AvailabilityRepository
	catalog domain.SlotCatalog
	metrics *metrics.AvailabilityMetrics
	log     *slog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.AvailabilityMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(repo store.AvailabilityRepository, catalog domain.SlotCatalog, opts ...Option) *Service {
	s := &Service{repo: repo, catalog: catalog, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "service.availability"))
	return s
}

func (s *Service) Catalog() domain.SlotCatalog {
	return s.catalog
}

func (s *Service) List(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
	ctx, span := tracer.Start(ctx, "availability.list")
	defer span.End()
	span.SetAttributes(
		attribute.String("schedula.range_start", rangeStart.String()),
		attribute.String("schedula.range_end", rangeEnd.String()),
	)

	if rangeStart.IsZero() || rangeEnd.IsZero() {
		return nil, validationError("rangeStart and rangeEnd are required")
	}
	if rangeEnd.Before(rangeStart) {
		return nil, validationError("rangeEnd must not be before rangeStart")
	}
	if rangeEnd.After(rangeStart.AddDays(MaxRangeDays - 1)) {
		return nil, validationError(fmt.Sprintf("range must not exceed %d days", MaxRangeDays))
	}

	rows, err := s.repo.ListRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("schedula.count", len(rows)))
	return rows, nil
}

type BatchInput struct {
	Records        []domain.AvailabilityRecord
	IdempotencyKey string
}

// UpsertBatch validates every record against the slot catalog and applies the
// batch atomically. Duplicate keys collapse to the last value given. An empty
// batch applies nothing and never reaches the repository.
func (s *Service) UpsertBatch(ctx context.Context, in BatchInput) (int, error) {
	ctx, span := tracer.Start(ctx, "availability.upsert_batch")
	defer span.End()
	span.SetAttributes(attribute.Int("schedula.records", len(in.Records)))

	records, err := s.normalize(in.Records)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	batch := domain.Batch{Records: records}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxIdempotencyKeyLen {
			return 0, validationError("idempotency key too long")
		}
		batch.ID = BatchID(key)
		span.SetAttributes(attribute.String("schedula.batch_id", batch.ID.String()))
	}

	n, err := s.repo.UpsertBatch(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert batch failed")
		if errors.Is(err, store.ErrIdempotencyConflict) {
			s.metrics.ObserveBatch("conflict", 0)
		} else {
			s.metrics.ObserveBatch("failed", 0)
		}
		return 0, err
	}

	s.metrics.ObserveBatch("applied", n)
	s.log.Info("availability batch applied", slog.Int("count", n), slog.String("batch_id", batch.ID.String()))
	return n, nil
}

func (s *Service) Upsert(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error) {
	ctx, span := tracer.Start(ctx, "availability.upsert")
	defer span.End()
	span.SetAttributes(attribute.String("schedula.slot", rec.Key().String()))

	if err := s.validate(rec); err != nil {
		return domain.AvailabilityRecord{}, err
	}
	out, err := s.repo.Upsert(ctx, domain.AvailabilityRecord{Date: rec.Date, SlotStart: rec.SlotStart, IsOpen: rec.IsOpen})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return domain.AvailabilityRecord{}, err
	}
	s.metrics.ObserveRecord()
	return out, nil
}

// BatchID derives the stable batch id for an idempotency key.
func BatchID(key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("schedula:availability_batch:"+key))
}

func (s *Service) validate(rec domain.AvailabilityRecord) error {
	if rec.Date.IsZero() {
		return validationError("date is required")
	}
	if !rec.SlotStart.Valid() || !s.catalog.Contains(rec.SlotStart) {
		return validationError(fmt.Sprintf("slot %s is not in the catalog", rec.SlotStart))
	}
	return nil
}

func (s *Service) normalize(in []domain.AvailabilityRecord) ([]domain.AvailabilityRecord, error) {
	latest := make(map[domain.SlotKey]bool, len(in))
	for i, rec := range in {
		if err := s.validate(rec); err != nil {
			return nil, validationError(fmt.Sprintf("record %d: %s", i, err.Error()))
		}
		latest[rec.Key()] = rec.IsOpen
	}

	out := make([]domain.AvailabilityRecord, 0, len(latest))
	for k, v := range latest {
		out = append(out, domain.AvailabilityRecord{Date: k.Date, SlotStart: k.Start, IsOpen: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}
