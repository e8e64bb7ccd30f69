package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a civil calendar date in the single reference calendar. The zero
// value means "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes out-of-range components the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateLayout)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

func (d Date) After(o Date) bool {
	return d.Time().After(o.Time())
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// MonthRange returns the first and last day of the given month.
func MonthRange(year int, month time.Month) (Date, Date) {
	first := NewDate(year, month, 1)
	last := NewDate(year, month+1, 0)
	return first, last
}

// DaysBetween lists every date from start to end inclusive.
func DaysBetween(start, end Date) []Date {
	if end.Before(start) {
		return nil
	}
	out := make([]Date, 0, int(end.Time().Sub(start.Time()).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	// Accept full timestamps too; some backends serialize date columns as RFC 3339.
	s := string(b)
	if len(s) > len(dateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			*d = DateOf(t.UTC())
			return nil
		}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// SlotStart is a time of day expressed in minutes after midnight.
type SlotStart int

const minutesPerDay = 24 * 60

var errInvalidSlotStart = errors.New("slot start must look like HH:MM")

func NewSlotStart(hour, minute int) SlotStart {
	return SlotStart(hour*60 + minute)
}

func ParseSlotStart(s string) (SlotStart, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", errInvalidSlotStart, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", errInvalidSlotStart, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", errInvalidSlotStart, s)
	}
	return NewSlotStart(hour, minute), nil
}

func (s SlotStart) Valid() bool {
	return s >= 0 && s < minutesPerDay
}

func (s SlotStart) Hour() int { return int(s) / 60 }
func (s SlotStart) Minute() int { return int(s) % 60 }

func (s SlotStart) Add(d time.Duration) SlotStart {
	return s + SlotStart(d/time.Minute)
}

func (s SlotStart) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour(), s.Minute())
}

func (s SlotStart) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d minutes", errInvalidSlotStart, int(s))
	}
	return []byte(s.String()), nil
}

func (s *SlotStart) UnmarshalText(b []byte) error {
	parsed, err := ParseSlotStart(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s SlotStart) Value() (driver.Value, error) {
	return s.String(), nil
}

func (s *SlotStart) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into SlotStart", src)
	}
}

// SlotKey identifies one slot on one day. It is comparable and is used
// directly as a map key.
type SlotKey struct {
	Date  Date
	Start SlotStart
}

func NewSlotKey(date Date, start SlotStart) SlotKey {
	return SlotKey{Date: date, Start: start}
}

// String renders the key as "2006-01-02_15:04", which sorts in (date, slot) order.
func (k SlotKey) String() string {
	return k.Date.String() + "_" + k.Start.String()
}

func (k SlotKey) Less(o SlotKey) bool {
	if k.Date != o.Date {
		return k.Date.Before(o.Date)
	}
	return k.Start < o.Start
}

func ParseSlotKey(s string) (SlotKey, error) {
	ds, ts, ok := strings.Cut(s, "_")
	if !ok {
		return SlotKey{}, fmt.Errorf("invalid slot key %q", s)
	}
	date, err := ParseDate(ds)
	if err != nil {
		return SlotKey{}, err
	}
	start, err := ParseSlotStart(ts)
	if err != nil {
		return SlotKey{}, err
	}
	return SlotKey{Date: date, Start: start}, nil
}
