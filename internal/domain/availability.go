package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AvailabilityRecord is one (date, slot) flag. A missing record means closed.
type AvailabilityRecord struct {
	bun.BaseModel `bun:"table:availability"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"-"`
	Date      Date      `bun:"date,notnull,type:date" json:"date"`
	SlotStart SlotStart `bun:"slot_start,notnull,type:text" json:"slotStart"`
	IsOpen    bool      `bun:"is_open,notnull" json:"isOpen"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"-"`
}

func (r AvailabilityRecord) Key() SlotKey {
	return SlotKey{Date: r.Date, Start: r.SlotStart}
}

func (r *AvailabilityRecord) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// PendingChange is the operator's latest intended value for a slot that has
// not been confirmed by the backend yet.
type PendingChange struct {
	Date      Date      `json:"date"`
	SlotStart SlotStart `json:"slotStart"`
	IsOpen    bool      `json:"isOpen"`
}

func NewPendingChange(key SlotKey, isOpen bool) PendingChange {
	return PendingChange{Date: key.Date, SlotStart: key.Start, IsOpen: isOpen}
}

func (c PendingChange) Key() SlotKey {
	return SlotKey{Date: c.Date, Start: c.SlotStart}
}

func (c PendingChange) Record() AvailabilityRecord {
	return AvailabilityRecord{Date: c.Date, SlotStart: c.SlotStart, IsOpen: c.IsOpen}
}

func ChangesToRecords(changes []PendingChange) []AvailabilityRecord {
	out := make([]AvailabilityRecord, len(changes))
	for i, c := range changes {
		out[i] = c.Record()
	}
	return out
}

type DayStatus int

const (
	DayClosed DayStatus = iota
	DayPartial
	DayFull
)

func (s DayStatus) String() string {
	switch s {
	case DayFull:
		return "full"
	case DayPartial:
		return "partial"
	default:
		return "closed"
	}
}

// DayAggregate is derived from the slot flags of one day; it is never stored.
type DayAggregate struct {
	Date       Date
	OpenCount  int
	TotalCount int
}

func (a DayAggregate) Percent() float64 {
	if a.TotalCount == 0 {
		return 0
	}
	return float64(a.OpenCount) / float64(a.TotalCount) * 100
}

func (a DayAggregate) Status() DayStatus {
	switch {
	case a.OpenCount == 0:
		return DayClosed
	case a.OpenCount >= a.TotalCount:
		return DayFull
	default:
		return DayPartial
	}
}
