package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"schedula/availability/internal/domain"
	grpcTransport "schedula/availability/internal/transport/grpc"
)

// GRPCBackend is the gRPC twin of HTTPBackend.
type GRPCBackend struct {
	rpc     *grpcTransport.AvailabilityServiceClient
	token   string
	timeout time.Duration
}

func NewGRPCBackend(cc grpc.ClientConnInterface, token string, timeout time.Duration) *GRPCBackend {
	return &GRPCBackend{
		rpc:     grpcTransport.NewAvailabilityServiceClient(cc),
		token:   token,
		timeout: timeout,
	}
}

func (b *GRPCBackend) FetchRange(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
	ctx, cancel := b.callContext(ctx, "")
	defer cancel()

	resp, err := b.rpc.ListAvailability(ctx, &grpcTransport.ListAvailabilityRequest{
		RangeStart: rangeStart.String(),
		RangeEnd:   rangeEnd.String(),
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.AvailabilityRecord, 0, len(resp.Records))
	for _, r := range resp.Records {
		rec, err := recordFromWire(r)
		if err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (b *GRPCBackend) CommitBatch(ctx context.Context, batchID uuid.UUID, changes []domain.PendingChange) error {
	key := ""
	if batchID != uuid.Nil {
		key = batchID.String()
	}
	ctx, cancel := b.callContext(ctx, key)
	defer cancel()

	records := make([]grpcTransport.Record, 0, len(changes))
	for _, c := range changes {
		records = append(records, changeToWire(c))
	}
	_, err := b.rpc.UpsertBatch(ctx, &grpcTransport.UpsertBatchRequest{Records: records})
	return err
}

func (b *GRPCBackend) CommitOne(ctx context.Context, change domain.PendingChange) error {
	ctx, cancel := b.callContext(ctx, "")
	defer cancel()

	rec := changeToWire(change)
	_, err := b.rpc.Upsert(ctx, &grpcTransport.UpsertRequest{Record: &rec})
	return err
}

func (b *GRPCBackend) callContext(ctx context.Context, idempotencyKey string) (context.Context, context.CancelFunc) {
	pairs := []string{}
	if b.token != "" {
		pairs = append(pairs, "authorization", "Bearer "+b.token)
	}
	if idempotencyKey != "" {
		pairs = append(pairs, "idempotency-key", idempotencyKey)
	}
	if len(pairs) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
	}
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func changeToWire(c domain.PendingChange) grpcTransport.Record {
	return grpcTransport.Record{Date: c.Date.String(), SlotStart: c.SlotStart.String(), IsOpen: c.IsOpen}
}

func recordFromWire(r grpcTransport.Record) (domain.AvailabilityRecord, error) {
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
