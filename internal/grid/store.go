package grid

import (
	"context"
	"sync"

	"schedula/availability/internal/domain"
)

// Store holds the last confirmed availability for the loaded date range.
type Store struct {
	mu         sync.RWMutex
	values     map[domain.SlotKey]bool
	rangeStart domain.Date
	rangeEnd   domain.Date
	version    uint64
	loadSeq    uint64

	// confirmed collects changes applied while a load is outstanding; the
	// load replays them over its result because its snapshot predates them.
	loading   bool
	confirmed []domain.PendingChange
}

func NewStore() *Store {
	return &Store{values: make(map[domain.SlotKey]bool)}
}

// Load fetches [rangeStart, rangeEnd] and replaces the store contents with
// exactly the returned records. Only the most recently requested load may
// land: an older load that completes late returns ErrLoadSuperseded and
// leaves the store alone. On fetch failure the previous contents are kept.
// Changes confirmed while the fetch was outstanding are laid over the result.
func (s *Store) Load(ctx context.Context, f Fetcher, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
	if rangeStart.IsZero() || rangeEnd.IsZero() {
		return nil, validationError("range start and end are required")
	}
	if rangeEnd.Before(rangeStart) {
		return nil, validationError("range end %s is before range start %s", rangeEnd, rangeStart)
	}

	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.loading = true
	s.mu.Unlock()

	records, err := f.FetchRange(ctx, rangeStart, rangeEnd)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.loadSeq {
		return nil, ErrLoadSuperseded
	}
	confirmed := s.confirmed
	s.loading = false
	s.confirmed = nil
	if err != nil {
		return nil, &FetchError{RangeStart: rangeStart, RangeEnd: rangeEnd, Err: err}
	}

	values := make(map[domain.SlotKey]bool, len(records))
	for _, r := range records {
		values[r.Key()] = r.IsOpen
	}
	for _, c := range confirmed {
		if c.Date.Before(rangeStart) || c.Date.After(rangeEnd) {
			continue
		}
		values[c.Key()] = c.IsOpen
	}
	s.values = values
	s.rangeStart = rangeStart
	s.rangeEnd = rangeEnd
	s.version++

	return records, nil
}

// IsOpen reports the confirmed value for key; absent keys are closed.
func (s *Store) IsOpen(key domain.SlotKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Values returns the confirmed value of each key, read under one lock.
func (s *Store) Values(keys []domain.SlotKey) []bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]bool, len(keys))
	for i, k := range keys {
		out[i] = s.values[k]
	}
	return out
}

// ApplyConfirmed folds backend-confirmed changes into the store.
func (s *Store) ApplyConfirmed(changes []domain.PendingChange) {
	if len(changes) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range changes {
		s.values[c.Key()] = c.IsOpen
	}
	if s.loading {
		s.confirmed = append(s.confirmed, changes...)
	}
	s.version++
}

// Range returns the currently loaded range; both dates are zero before the
// first successful load.
func (s *Store) Range() (domain.Date, domain.Date) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rangeStart, s.rangeEnd
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
