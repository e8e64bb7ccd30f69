package grid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedula/availability/internal/domain"
)

var admin = Operator{ID: "op-1", Role: RoleAdmin}

func fixedClock() func() time.Time {
	now := time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func newTestEditor(t *testing.T, backend Backend) *Editor {
	t.Helper()
	e, err := NewEditor(admin, backend, WithCatalog(threeSlotCatalog()), WithClock(fixedClock()))
	require.NoError(t, err)
	return e
}

func recordsBackend(records ...domain.AvailabilityRecord) *fakeBackend {
	return &fakeBackend{
		fetchFn: func(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
			var out []domain.AvailabilityRecord
			for _, r := range records {
				if !r.Date.Before(rangeStart) && !r.Date.After(rangeEnd) {
					out = append(out, r)
				}
			}
			return out, nil
		},
		commitFn: func(ctx context.Context, batchID uuid.UUID, changes []domain.PendingChange) error {
			return nil
		},
	}
}

func TestNewEditor_Authorization(t *testing.T) {
	_, err := NewEditor(Operator{ID: "u-1", Role: "USER"}, &fakeBackend{})
	require.ErrorIs(t, err, ErrNotAuthorized)

	_, err = NewEditor(Operator{ID: "u-2"}, &fakeBackend{})
	require.ErrorIs(t, err, ErrNotAuthorized)

	_, err = NewEditor(admin, nil)
	require.Error(t, err)

	e, err := NewEditor(Operator{ID: "a", Role: "admin"}, &fakeBackend{}, WithClock(fixedClock()))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCatalog().Len(), e.Catalog().Len())
	y, m := e.CurrentMonth()
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.May, m)
}

func TestEditor_WholeDayMark(t *testing.T) {
	e := newTestEditor(t, recordsBackend())
	require.NoError(t, e.ShowMonth(context.Background(), 2024, time.May))
	require.NoError(t, e.Select(may1))

	require.NoError(t, e.MarkWholeDay(true))

	agg := e.Day(may1)
	assert.Equal(t, 3, agg.OpenCount)
	assert.Equal(t, 3, agg.TotalCount)
	assert.Equal(t, domain.DayFull, agg.Status())
	assert.Equal(t, 3, e.PendingCount())

	n, ok := e.Notices().Current()
	require.True(t, ok)
	assert.Equal(t, NoticeSuccess, n.Kind)
}

func TestEditor_ToggleOverridesStore(t *testing.T) {
	e := newTestEditor(t, recordsBackend(record(may1, h10, true)))
	require.NoError(t, e.ShowMonth(context.Background(), 2024, time.May))
	require.NoError(t, e.Select(may1))
	assert.Equal(t, 1, e.Day(may1).OpenCount)

	next, err := e.Toggle(h10)
	require.NoError(t, err)
	assert.False(t, next)

	staged, ok := e.Ledger().Lookup(domain.NewSlotKey(may1, h10))
	require.True(t, ok)
	assert.False(t, staged)
	assert.Zero(t, e.Day(may1).OpenCount)
	assert.Equal(t, domain.DayClosed, e.Day(may1).Status())
	assert.True(t, e.Store().IsOpen(domain.NewSlotKey(may1, h10)))
}

func TestEditor_FailedCommitKeepsEverything(t *testing.T) {
	backend := recordsBackend()
	backend.commitFn = func(ctx context.Context, batchID uuid.UUID, changes []domain.PendingChange) error {
		return errors.New("network unreachable")
	}
	e := newTestEditor(t, backend)
	require.NoError(t, e.ShowMonth(context.Background(), 2024, time.May))
	require.NoError(t, e.Select(may1))
	_, err := e.Toggle(h9)
	require.NoError(t, err)
	_, err = e.Toggle(h10)
	require.NoError(t, err)

	_, err = e.Commit(context.Background())
	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)

	assert.Equal(t, 2, e.PendingCount())
	assert.Zero(t, e.Store().Len())
	assert.Equal(t, 2, e.Day(may1).OpenCount)

	n, ok := e.Notices().Current()
	require.True(t, ok)
	assert.Equal(t, NoticeError, n.Kind)
	assert.Equal(t, "Error saving changes", n.Text)
}

func TestEditor_SuccessfulCommit(t *testing.T) {
	var sent []domain.PendingChange
	backend := recordsBackend(record(may1, h9, true))
	backend.commitFn = func(ctx context.Context, batchID uuid.UUID, changes []domain.PendingChange) error {
		sent = changes
		return nil
	}
	e := newTestEditor(t, backend)
	require.NoError(t, e.ShowMonth(context.Background(), 2024, time.May))
	require.NoError(t, e.Select(may1))
	_, err := e.Toggle(h9)
	require.NoError(t, err)
	_, err = e.Toggle(h11)
	require.NoError(t, err)

	res, err := e.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Len(t, sent, 2)

	assert.Zero(t, e.PendingCount())
	assert.False(t, e.Store().IsOpen(domain.NewSlotKey(may1, h9)))
	assert.True(t, e.Store().IsOpen(domain.NewSlotKey(may1, h11)))

	n, ok := e.Notices().Current()
	require.True(t, ok)
	assert.Equal(t, "2 changes saved", n.Text)
}

func TestEditor_EmptyCommit(t *testing.T) {
	backend := recordsBackend()
	e := newTestEditor(t, backend)

	res, err := e.Commit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.NoOp)

	_, commits := backend.calls()
	assert.Zero(t, commits)

	n, ok := e.Notices().Current()
	require.True(t, ok)
	assert.Equal(t, "No pending changes to save", n.Text)
}

func TestEditor_StaleMonthLoadDropped(t *testing.T) {
	june1 := domain.NewDate(2024, 6, 1)
	mayRequested := make(chan struct{})
	releaseMay := make(chan struct{})
	backend := &fakeBackend{
		fetchFn: func(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
			if rangeStart.Month == time.May {
				close(mayRequested)
				<-releaseMay
				return []domain.AvailabilityRecord{record(may1, h9, true)}, nil
			}
			return []domain.AvailabilityRecord{record(june1, h10, true)}, nil
		},
	}
	e := newTestEditor(t, backend)

	mayErr := make(chan error, 1)
	go func() { mayErr <- e.ShowMonth(context.Background(), 2024, time.May) }()
	<-mayRequested

	require.NoError(t, e.NextMonth(context.Background()))
	close(releaseMay)
	require.ErrorIs(t, <-mayErr, ErrLoadSuperseded)

	y, m := e.CurrentMonth()
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.June, m)
	assert.True(t, e.Store().IsOpen(domain.NewSlotKey(june1, h10)))
	assert.False(t, e.Store().IsOpen(domain.NewSlotKey(may1, h9)))

	_, ok := e.Notices().Current()
	assert.False(t, ok, "a superseded load is not an error for the operator")
}

func TestEditor_LoadFailurePostsNotice(t *testing.T) {
	backend := &fakeBackend{
		fetchFn: func(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
			return nil, errors.New("dns failure")
		},
	}
	e := newTestEditor(t, backend)

	err := e.ShowMonth(context.Background(), 2024, time.May)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)

	n, ok := e.Notices().Current()
	require.True(t, ok)
	assert.Equal(t, "Error loading availability", n.Text)
}

func TestEditor_NavigationKeepsPendingEdits(t *testing.T) {
	e := newTestEditor(t, recordsBackend())
	require.NoError(t, e.ShowMonth(context.Background(), 2024, time.May))
	require.NoError(t, e.Select(may1))
	require.NoError(t, e.MarkWholeDay(true))

	require.NoError(t, e.NextMonth(context.Background()))
	require.NoError(t, e.PrevMonth(context.Background()))

	assert.Equal(t, 3, e.PendingCount())
	assert.Equal(t, 3, e.Day(may1).OpenCount)

	require.NoError(t, e.ShowMonth(context.Background(), 2024, time.January))
	require.NoError(t, e.PrevMonth(context.Background()))
	y, m := e.CurrentMonth()
	assert.Equal(t, 2023, y)
	assert.Equal(t, time.December, m)
}

func TestEditor_DiscardReloads(t *testing.T) {
	backend := recordsBackend(record(may1, h9, true))
	e := newTestEditor(t, backend)
	require.NoError(t, e.ShowMonth(context.Background(), 2024, time.May))
	require.NoError(t, e.Select(may1))
	require.NoError(t, e.MarkWholeDay(false))

	require.NoError(t, e.Discard(context.Background()))

	assert.Zero(t, e.PendingCount())
	assert.Equal(t, 1, e.Day(may1).OpenCount)
	fetches, _ := backend.calls()
	assert.Equal(t, 2, fetches)

	n, ok := e.Notices().Current()
	require.True(t, ok)
	assert.Equal(t, "Changes discarded", n.Text)
}

func TestEditor_DiscardReloadsDisplayedMonth(t *testing.T) {
	june1 := domain.NewDate(2024, 6, 1)
	failJune := true
	var ranges []domain.Date
	backend := &fakeBackend{
		fetchFn: func(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
			ranges = append(ranges, rangeStart)
			if rangeStart == june1 {
				if failJune {
					return nil, errors.New("connection reset")
				}
				return []domain.AvailabilityRecord{record(june1, h11, true)}, nil
			}
			return []domain.AvailabilityRecord{record(may1, h9, true)}, nil
		},
	}
	e := newTestEditor(t, backend)
	require.NoError(t, e.ShowMonth(context.Background(), 2024, time.May))
	require.Error(t, e.ShowMonth(context.Background(), 2024, time.June))

	failJune = false
	require.NoError(t, e.Discard(context.Background()))

	require.Len(t, ranges, 3)
	assert.Equal(t, june1, ranges[2])
	first, _ := e.Store().Range()
	assert.Equal(t, june1, first)
	assert.True(t, e.Store().IsOpen(domain.NewSlotKey(june1, h11)))
	assert.Equal(t, 1, e.Day(june1).OpenCount)
}

func TestEditor_CommitNow(t *testing.T) {
	var sent []domain.PendingChange
	backend := recordsBackend(record(may1, h9, true))
	backend.oneFn = func(ctx context.Context, change domain.PendingChange) error {
		sent = append(sent, change)
		return nil
	}
	e := newTestEditor(t, backend)
	require.NoError(t, e.ShowMonth(context.Background(), 2024, time.May))

	_, err := e.CommitNow(context.Background(), h9)
	require.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, e.Select(may1))
	_, err = e.Toggle(h10)
	require.NoError(t, err)

	open, err := e.CommitNow(context.Background(), h9)
	require.NoError(t, err)
	assert.False(t, open)
	assert.False(t, e.Store().IsOpen(domain.NewSlotKey(may1, h9)))

	// A staged value is the one being flipped, and the entry is settled.
	open, err = e.CommitNow(context.Background(), h10)
	require.NoError(t, err)
	assert.False(t, open)
	assert.Zero(t, e.PendingCount())
	assert.Len(t, sent, 2)

	_, err = e.CommitNow(context.Background(), domain.NewSlotStart(15, 0))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestEditor_CommitNowRequiresSingleWriter(t *testing.T) {
	e := newTestEditor(t, batchOnly{recordsBackend()})
	require.NoError(t, e.Select(may1))
	_, err := e.CommitNow(context.Background(), h9)
	require.ErrorIs(t, err, ErrSingleWriteUnsupported)
}
