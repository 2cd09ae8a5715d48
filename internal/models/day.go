// ABOUTME: CalendarDay value type and date normalization.
// ABOUTME: Reduces dates and timestamps to a (year, month, day) key read in local time.
package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DayLayout is the serialized form of a CalendarDay.
const DayLayout = "2006-01-02"

// ErrEmptyDate is returned when a date string is blank.
var ErrEmptyDate = errors.New("date is required")

// CalendarDay is a date without time-of-day or timezone.
// The zero value is not a valid day.
type CalendarDay struct {
	Year  int
	Month time.Month
	Day   int
}

// NewCalendarDay builds a day, normalizing out-of-range month or day values
// the same way time.Date does.
func NewCalendarDay(year int, month time.Month, day int) CalendarDay {
	return Normalize(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Normalize returns the calendar day t falls on in its own location.
// Year, month and day are read in local time; the instant is never
// truncated in UTC, which would shift days for inputs near midnight.
func Normalize(t time.Time) CalendarDay {
	y, m, d := t.Date()
	return CalendarDay{Year: y, Month: m, Day: d}
}

// Today returns the current day in loc.
func Today(loc *time.Location) CalendarDay {
	return TodayAt(time.Now(), loc)
}

// TodayAt returns the day now falls on in loc.
func TodayAt(now time.Time, loc *time.Location) CalendarDay {
	if loc == nil {
		loc = time.Local
	}
	return Normalize(now.In(loc))
}

// layouts without zone information are read in the caller's location.
var localLayouts = []string{
	DayLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDay parses a date or timestamp into a CalendarDay.
//
// Plain dates and zone-less timestamps are read as wall-clock values in loc.
// Timestamps carrying an offset are converted into loc before the day is
// taken, so an instant serialized in UTC by a client lands on the local day
// it was picked on.
func ParseDay(s string, loc *time.Location) (CalendarDay, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CalendarDay{}, ErrEmptyDate
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Normalize(t), nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Normalize(t.In(loc)), nil
	}
	return CalendarDay{}, fmt.Errorf("invalid date %q", s)
}

// MustParseDay is ParseDay for literal dates; it panics on error.
func MustParseDay(s string) CalendarDay {
	d, err := ParseDay(s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero value.
func (d CalendarDay) IsZero() bool {
	return d == CalendarDay{}
}

// Time returns midnight of d in loc.
func (d CalendarDay) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the day n days after d.
func (d CalendarDay) AddDays(n int) CalendarDay {
	return NewCalendarDay(d.Year, d.Month, d.Day+n)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to,
// or after o.
func (d CalendarDay) Compare(o CalendarDay) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before reports whether d is strictly earlier than o.
func (d CalendarDay) Before(o CalendarDay) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly later than o.
func (d CalendarDay) After(o CalendarDay) bool { return d.Compare(o) > 0 }

// String formats d as YYYY-MM-DD.
func (d CalendarDay) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Ordinal returns d as the integer YYYYMMDD, which sorts chronologically.
func (d CalendarDay) Ordinal() int {
	return d.Year*10000 + int(d.Month)*100 + d.Day
}

// MarshalText implements encoding.TextMarshaler.
func (d CalendarDay) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Only the strict
// YYYY-MM-DD form is accepted.
func (d *CalendarDay) UnmarshalText(text []byte) error {
	t, err := time.Parse(DayLayout, string(text))
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", text, err)
	}
	*d = Normalize(t)
	return nil
}

// Value implements driver.Valuer, storing the day as a plain date string.
func (d CalendarDay) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *CalendarDay) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case time.Time:
		*d = Normalize(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into CalendarDay", src)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
