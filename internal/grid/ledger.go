package grid

import (
	"sort"
	"sync"

	"schedula/availability/internal/domain"
)

// Ledger records edits that the backend has not confirmed yet. It shadows the
// store: readers combine both through EffectiveValue, the store itself is
// never mutated by staging.
type Ledger struct {
	catalog domain.SlotCatalog

	mu      sync.RWMutex
	entries map[domain.SlotKey]bool
	version uint64
}

func NewLedger(catalog domain.SlotCatalog) *Ledger {
	return &Ledger{
		catalog: catalog,
		entries: make(map[domain.SlotKey]bool),
	}
}

func (l *Ledger) Catalog() domain.SlotCatalog {
	return l.catalog
}

func (l *Ledger) validateKey(key domain.SlotKey) error {
	if key.Date.IsZero() {
		return validationError("slot key date is required")
	}
	if !l.catalog.Contains(key.Start) {
		return validationError("slot %s is not in the catalog", key.Start)
	}
	return nil
}

// Stage upserts the intended value for key; a later Stage for the same key
// overwrites the earlier one.
func (l *Ledger) Stage(key domain.SlotKey, isOpen bool) error {
	if err := l.validateKey(key); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = isOpen
	l.version++
	return nil
}

// StageDay stages every catalog slot of date in one step, so no reader ever
// observes a partially marked day.
func (l *Ledger) StageDay(date domain.Date, isOpen bool) error {
	if date.IsZero() {
		return validationError("date is required")
	}
	keys := l.catalog.Keys(date)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		l.entries[k] = isOpen
	}
	l.version++
	return nil
}

// Lookup returns the staged value for key, if any.
func (l *Ledger) Lookup(key domain.SlotKey) (bool, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.entries[key]
	return v, ok
}

// EffectiveValue is the single read path for current intent: the staged
// value if present, otherwise the confirmed one.
func (l *Ledger) EffectiveValue(key domain.SlotKey, store *Store) bool {
	if v, ok := l.Lookup(key); ok {
		return v
	}
	return store.IsOpen(key)
}

// Snapshot returns the staged values among keys, read under one lock so a
// concurrent StageDay is seen either entirely or not at all.
func (l *Ledger) Snapshot(keys []domain.SlotKey) map[domain.SlotKey]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[domain.SlotKey]bool, len(keys))
	for _, k := range keys {
		if v, ok := l.entries[k]; ok {
			out[k] = v
		}
	}
	return out
}

// All returns a snapshot of the pending changes ordered by key.
func (l *Ledger) All() []domain.PendingChange {
	l.mu.RLock()
	out := make([]domain.PendingChange, 0, len(l.entries))
	for k, v := range l.entries {
		out = append(out, domain.NewPendingChange(k, v))
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Ledger) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return
	}
	l.entries = make(map[domain.SlotKey]bool)
	l.version++
}

// Drop forgets the staged values for keys, whatever they are.
func (l *Ledger) Drop(keys ...domain.SlotKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := false
	for _, k := range keys {
		if _, ok := l.entries[k]; ok {
			delete(l.entries, k)
			removed = true
		}
	}
	if removed {
		l.version++
	}
}

// Settle drops the entries confirmed by a commit. An entry re-staged with a
// different value after the commit snapshot was taken stays pending.
func (l *Ledger) Settle(committed []domain.PendingChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := false
	for _, c := range committed {
		k := c.Key()
		if v, ok := l.entries[k]; ok && v == c.IsOpen {
			delete(l.entries, k)
			removed = true
		}
	}
	if removed {
		l.version++
	}
}
