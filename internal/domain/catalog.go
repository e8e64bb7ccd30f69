package domain

import (
	"fmt"
	"time"
)

// SlotCatalog is the fixed, ordered list of bookable slot starts for one day.
type SlotCatalog struct {
	starts []SlotStart
	length time.Duration
}

// NewSlotCatalog validates that starts is non-empty, strictly increasing and
// that every slot of the given length ends within the day.
func NewSlotCatalog(length time.Duration, starts ...SlotStart) (SlotCatalog, error) {
	if len(starts) == 0 {
		return SlotCatalog{}, fmt.Errorf("slot catalog must not be empty")
	}
	if length < time.Minute {
		return SlotCatalog{}, fmt.Errorf("slot length must be at least one minute")
	}
	for i, s := range starts {
		if !s.Valid() {
			return SlotCatalog{}, fmt.Errorf("slot %d: invalid start %d", i, int(s))
		}
		if int(s.Add(length)) > minutesPerDay {
			return SlotCatalog{}, fmt.Errorf("slot %s runs past midnight", s)
		}
		if i > 0 && s <= starts[i-1] {
			return SlotCatalog{}, fmt.Errorf("slot starts must be strictly increasing: %s after %s", s, starts[i-1])
		}
	}
	out := make([]SlotStart, len(starts))
	copy(out, starts)
	return SlotCatalog{starts: out, length: length}, nil
}

// UniformCatalog builds back-to-back slots of the given length, from first up
// to and including last.
func UniformCatalog(first, last SlotStart, length time.Duration) (SlotCatalog, error) {
	if length < time.Minute {
		return SlotCatalog{}, fmt.Errorf("slot length must be at least one minute")
	}
	if last < first {
		return SlotCatalog{}, fmt.Errorf("last slot %s is before first slot %s", last, first)
	}
	var starts []SlotStart
	for s := first; s <= last; s = s.Add(length) {
		starts = append(starts, s)
	}
	return NewSlotCatalog(length, starts...)
}

// ParseSlotCatalog builds a catalog from "HH:MM" strings.
func ParseSlotCatalog(length time.Duration, starts []string) (SlotCatalog, error) {
	parsed := make([]SlotStart, 0, len(starts))
	for _, s := range starts {
		p, err := ParseSlotStart(s)
		if err != nil {
			return SlotCatalog{}, err
		}
		parsed = append(parsed, p)
	}
	return NewSlotCatalog(length, parsed...)
}

// DefaultCatalog is nine one-hour sessions from 09:00 to 18:00.
func DefaultCatalog() SlotCatalog {
	c, err := UniformCatalog(NewSlotStart(9, 0), NewSlotStart(17, 0), time.Hour)
	if err != nil {
		panic(err)
	}
	return c
}

func (c SlotCatalog) Len() int {
	return len(c.starts)
}

func (c SlotCatalog) SlotLength() time.Duration {
	return c.length
}

func (c SlotCatalog) Starts() []SlotStart {
	out := make([]SlotStart, len(c.starts))
	copy(out, c.starts)
	return out
}

func (c SlotCatalog) Contains(s SlotStart) bool {
	lo, hi := 0, len(c.starts)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case c.starts[mid] == s:
			return true
		case c.starts[mid] < s:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}

// Keys returns the key of every catalog slot on date, in slot order.
func (c SlotCatalog) Keys(date Date) []SlotKey {
	out := make([]SlotKey, len(c.starts))
	for i, s := range c.starts {
		out[i] = SlotKey{Date: date, Start: s}
	}
	return out
}

// Label renders a slot as "09:00 - 10:00".
func (c SlotCatalog) Label(s SlotStart) string {
	return s.String() + " - " + s.Add(c.length).String()
}
