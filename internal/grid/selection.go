package grid

import (
	"sync"

	"schedula/availability/internal/domain"
)

// SlotView is one row of the slot grid for the selected day.
type SlotView struct {
	Start   domain.SlotStart
	Label   string
	Open    bool
	Pending bool
}

// Selection tracks the single day under edit. Once a day is selected there is
// no way back to "no selection"; changing day never touches the ledger.
type Selection struct {
	store  *Store
	ledger *Ledger

	mu       sync.RWMutex
	selected domain.Date
}

func NewSelection(store *Store, ledger *Ledger) *Selection {
	return &Selection{store: store, ledger: ledger}
}

func (s *Selection) Select(date domain.Date) error {
	if date.IsZero() {
		return validationError("date is required")
	}
	s.mu.Lock()
	s.selected = date
	s.mu.Unlock()
	return nil
}

func (s *Selection) Selected() (domain.Date, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, !s.selected.IsZero()
}

// Toggle stages the negation of the slot's effective value on the selected
// day and returns the newly staged value.
func (s *Selection) Toggle(start domain.SlotStart) (bool, error) {
	date, ok := s.Selected()
	if !ok {
		return false, ErrNoSelection
	}
	key := domain.NewSlotKey(date, start)
	next := !s.ledger.EffectiveValue(key, s.store)
	if err := s.ledger.Stage(key, next); err != nil {
		return false, err
	}
	return next, nil
}

func (s *Selection) MarkWholeDay(isOpen bool) error {
	date, ok := s.Selected()
	if !ok {
		return ErrNoSelection
	}
	return s.ledger.StageDay(date, isOpen)
}

// Slots renders the selected day against the catalog.
func (s *Selection) Slots() ([]SlotView, error) {
	date, ok := s.Selected()
	if !ok {
		return nil, ErrNoSelection
	}
	catalog := s.ledger.Catalog()
	keys := catalog.Keys(date)
	staged := s.ledger.Snapshot(keys)
	confirmed := s.store.Values(keys)
	out := make([]SlotView, 0, len(keys))
	for i, key := range keys {
		open, pending := staged[key]
		if !pending {
			open = confirmed[i]
		}
		out = append(out, SlotView{
			Start:   key.Start,
			Label:   catalog.Label(key.Start),
			Open:    open,
			Pending: pending,
		})
	}
	return out, nil
}
