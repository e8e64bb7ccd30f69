package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"schedula/availability/internal/domain"
	"schedula/availability/internal/service/availability"
	"schedula/availability/internal/store"
)

type AvailabilityServer struct {
	svc availabilityService
	log *slog.Logger
}

type availabilityService interface {
	List(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error)
	UpsertBatch(ctx context.Context, in availability.BatchInput) (int, error)
	Upsert(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error)
}

func NewAvailabilityServer(svc availabilityService, log *slog.Logger) *AvailabilityServer {
	if log == nil {
		log = slog.Default()
	}
	return &AvailabilityServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.availability")),
	}
}

func (s *AvailabilityServer) ListAvailability(ctx context.Context, req *ListAvailabilityRequest) (*ListAvailabilityResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAvailability"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	rangeStart, err := domain.ParseDate(req.RangeStart)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_range_start"))
		return nil, status.Error(codes.InvalidArgument, "range_start must be YYYY-MM-DD")
	}
	rangeEnd, err := domain.ParseDate(req.RangeEnd)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_range_end"))
		return nil, status.Error(codes.InvalidArgument, "range_end must be YYYY-MM-DD")
	}

	rows, err := s.svc.List(ctx, rangeStart, rangeEnd)
	if err != nil {
		var vErr *availability.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err))
			return nil, status.Error(codes.InvalidArgument, vErr.Error())
		}
		log.Error("availability list failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRecord(r))
	}

	log.Debug(
		"availability listed",
		slog.Int("count", len(out)),
		slog.String("range_start", req.RangeStart),
		slog.String("range_end", req.RangeEnd),
	)
	return &ListAvailabilityResponse{Records: out}, nil
}

func (s *AvailabilityServer) UpsertBatch(ctx context.Context, req *UpsertBatchRequest) (*UpsertBatchResponse, error) {
	log := s.log.With(slog.String("rpc", "UpsertBatch"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	records := make([]domain.AvailabilityRecord, 0, len(req.Records))
	for i, r := range req.Records {
		rec, err := fromRecord(r)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "bad_record"), slog.Int("index", i))
			return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("record %d: %v", i, err))
		}
		records = append(records, rec)
	}

	n, err := s.svc.UpsertBatch(ctx, availability.BatchInput{
		Records:        records,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		if errors.Is(err, store.ErrIdempotencyConflict) {
			log.Info("availability batch idempotency conflict")
			return nil, status.Error(codes.FailedPrecondition, "This request key was already used for a different batch.")
		}
		var vErr *availability.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err))
			return nil, status.Error(codes.InvalidArgument, vErr.Error())
		}
		log.Error("availability batch failed", slog.Any("err", err), slog.Int("records", len(records)))
		return nil, status.Error(codes.Internal, "internal error")
	}

	return &UpsertBatchResponse{Applied: n}, nil
}

func (s *AvailabilityServer) Upsert(ctx context.Context, req *UpsertRequest) (*UpsertResponse, error) {
	log := s.log.With(slog.String("rpc", "Upsert"))

	if req == nil || req.Record == nil {
		log.Warn("invalid request", slog.String("reason", "missing_record"))
		return nil, status.Error(codes.InvalidArgument, "record is required")
	}
	rec, err := fromRecord(*req.Record)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_record"))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	saved, err := s.svc.Upsert(ctx, rec)
	if err != nil {
		var vErr *availability.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err))
			return nil, status.Error(codes.InvalidArgument, vErr.Error())
		}
		log.Error("availability upsert failed", slog.Any("err", err), slog.String("slot", rec.Key().String()))
		return nil, status.Error(codes.Internal, "internal error")
	}

	log.Info("availability upserted", slog.String("slot", saved.Key().String()), slog.Bool("is_open", saved.IsOpen))
	return &UpsertResponse{Record: toRecord(saved)}, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func toRecord(r domain.AvailabilityRecord) Record {
	return Record{Date: r.Date.String(), SlotStart: r.SlotStart.String(), IsOpen: r.IsOpen}
}

func fromRecord(r Record) (domain.AvailabilityRecord, error) {
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}
	start, err := domain.ParseSlotStart(r.SlotStart)
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}
	return domain.AvailabilityRecord{Date: date, SlotStart: start, IsOpen: r.IsOpen}, nil
}
