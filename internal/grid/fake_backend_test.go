package grid

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"schedula/availability/internal/domain"
)

type fakeBackend struct {
	fetchFn  func(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error)
	commitFn func(ctx context.Context, batchID uuid.UUID, changes []domain.PendingChange) error
	oneFn    func(ctx context.Context, change domain.PendingChange) error

	mu          sync.Mutex
	fetchCalls  int
	commitCalls int
}

func (f *fakeBackend) FetchRange(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.fetchFn == nil {
		return nil, nil
	}
	return f.fetchFn(ctx, rangeStart, rangeEnd)
}

func (f *fakeBackend) CommitBatch(ctx context.Context, batchID uuid.UUID, changes []domain.PendingChange) error {
	f.mu.Lock()
	f.commitCalls++
	f.mu.Unlock()
	if f.commitFn == nil {
		panic("CommitBatch not configured")
	}
	return f.commitFn(ctx, batchID, changes)
}

func (f *fakeBackend) CommitOne(ctx context.Context, change domain.PendingChange) error {
	if f.oneFn == nil {
		panic("CommitOne not configured")
	}
	return f.oneFn(ctx, change)
}

func (f *fakeBackend) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, f.commitCalls
}

// batchOnly hides CommitOne from type assertions.
type batchOnly struct {
	Backend
}

var (
	may1 = domain.NewDate(2024, 5, 1)
	h9   = domain.NewSlotStart(9, 0)
	h10  = domain.NewSlotStart(10, 0)
	h11  = domain.NewSlotStart(11, 0)
)

func threeSlotCatalog() domain.SlotCatalog {
	c, err := domain.NewSlotCatalog(time.Hour, h9, h10, h11)
	if err != nil {
		panic(err)
	}
	return c
}

func record(date domain.Date, start domain.SlotStart, open bool) domain.AvailabilityRecord {
	return domain.AvailabilityRecord{Date: date, SlotStart: start, IsOpen: open}
}

func loadedStore(records ...domain.AvailabilityRecord) *Store {
	s := NewStore()
	_, err := s.Load(context.Background(), &fakeBackend{
		fetchFn: func(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
			return records, nil
		},
	}, domain.NewDate(2024, 5, 1), domain.NewDate(2024, 5, 31))
	if err != nil {
		panic(err)
	}
	return s
}
