package grid

import (
	"sync"
	"time"

	"schedula/availability/internal/domain"
)

// Aggregate counts the effective open slots of date against catalog.
func Aggregate(date domain.Date, catalog domain.SlotCatalog, store *Store, ledger *Ledger) domain.DayAggregate {
	agg := domain.DayAggregate{Date: date, TotalCount: catalog.Len()}
	keys := catalog.Keys(date)
	staged := ledger.Snapshot(keys)
	confirmed := store.Values(keys)
	for i, k := range keys {
		open, ok := staged[k]
		if !ok {
			open = confirmed[i]
		}
		if open {
			agg.OpenCount++
		}
	}
	return agg
}

type projectionKey struct {
	date          domain.Date
	storeVersion  uint64
	ledgerVersion uint64
}

// Projector serves day aggregates for rendering, reusing results until either
// the store or the ledger changes.
type Projector struct {
	catalog domain.SlotCatalog
	store   *Store
	ledger  *Ledger

	mu    sync.Mutex
	cache map[projectionKey]domain.DayAggregate
}

func NewProjector(catalog domain.SlotCatalog, store *Store, ledger *Ledger) *Projector {
	return &Projector{
		catalog: catalog,
		store:   store,
		ledger:  ledger,
		cache:   make(map[projectionKey]domain.DayAggregate),
	}
}

func (p *Projector) Day(date domain.Date) domain.DayAggregate {
	key := projectionKey{date: date, storeVersion: p.store.Version(), ledgerVersion: p.ledger.Version()}

	p.mu.Lock()
	defer p.mu.Unlock()
	if agg, ok := p.cache[key]; ok {
		return agg
	}
	// Entries for older versions can never be hit again.
	for k := range p.cache {
		if k.storeVersion != key.storeVersion || k.ledgerVersion != key.ledgerVersion {
			delete(p.cache, k)
		}
	}
	agg := Aggregate(date, p.catalog, p.store, p.ledger)
	p.cache[key] = agg
	return agg
}

// Month returns one aggregate per day of the month, in date order.
func (p *Projector) Month(year int, month time.Month) []domain.DayAggregate {
	first, last := domain.MonthRange(year, month)
	days := domain.DaysBetween(first, last)
	out := make([]domain.DayAggregate, len(days))
	for i, d := range days {
		out[i] = p.Day(d)
	}
	return out
}
