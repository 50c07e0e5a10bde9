package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Clock is a time of day expressed as minutes past midnight.
type Clock int

// MinutesPerDay bounds valid Clock values; 24:00 is accepted as an end of day marker.
const MinutesPerDay = 24 * 60

// NewClock builds a Clock from hours and minutes.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses HH:MM or HH:MM:SS.
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return NewClock(t.Hour(), t.Minute()), nil
		}
	}
	if raw == "24:00" || raw == "24:00:00" {
		return MinutesPerDay, nil
	}
	return 0, fmt.Errorf("invalid time of day %q", raw)
}

// ClockOf extracts the time of day from t.
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute())
}

// Valid reports whether the clock falls inside a day.
func (c Clock) Valid() bool {
	return c >= 0 && c <= MinutesPerDay
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(data []byte) error {
	parsed, err := ParseClock(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value stores the clock in a Postgres TIME column.
func (c Clock) Value() (driver.Value, error) {
	return c.String() + ":00", nil
}

// Scan reads TIME values which lib/pq surfaces as text or time.Time. lib/pq
// decodes 24:00:00 as midnight of 0000-01-02, which maps back to end of day.
func (c *Clock) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*c = 0
		return nil
	case time.Time:
		if v.Year() == 0 && v.YearDay() == 2 && ClockOf(v) == 0 {
			*c = MinutesPerDay
			return nil
		}
		*c = ClockOf(v)
		return nil
	case []byte:
		return c.UnmarshalText(v)
	case string:
		return c.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("unsupported clock type %T", value)
	}
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateOf normalises t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return DateOf(t), nil
}

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
