// ABOUTME: Tests for CalendarDay parsing, normalization, and ordering.
// ABOUTME: Covers local-time semantics near midnight and serialization round-trips.
package models

import (
	"encoding/json"
	"testing"
	"time"
)

var (
	newYork = time.FixedZone("UTC-5", -5*60*60)
	tokyo   = time.FixedZone("UTC+9", 9*60*60)
)

func TestNormalizeUsesLocalDate(t *testing.T) {
	// 23:30 in New York is already the next day in UTC.
	late := time.Date(2024, 5, 1, 23, 30, 0, 0, newYork)
	got := Normalize(late)
	want := CalendarDay{Year: 2024, Month: time.May, Day: 1}
	if got != want {
		t.Errorf("Normalize(%v) = %v, want %v", late, got, want)
	}
	if utc := Normalize(late.UTC()); utc == want {
		t.Errorf("UTC truncation should differ for this input, got %v", utc)
	}

	// 00:30 in Tokyo is still the previous day in UTC.
	early := time.Date(2024, 5, 1, 0, 30, 0, 0, tokyo)
	if got := Normalize(early); got != want {
		t.Errorf("Normalize(%v) = %v, want %v", early, got, want)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, loc := range []*time.Location{time.UTC, newYork, tokyo} {
		d := CalendarDay{Year: 2024, Month: time.February, Day: 29}
		if got := Normalize(d.Time(loc)); got != d {
			t.Errorf("Normalize(%v.Time(%v)) = %v, want %v", d, loc, got, d)
		}
		if got := Normalize(Normalize(d.Time(loc)).Time(loc)); got != d {
			t.Errorf("double normalize = %v, want %v", got, d)
		}
	}
}

func TestParseDay(t *testing.T) {
	want := CalendarDay{Year: 2024, Month: time.May, Day: 1}

	tests := []struct {
		name    string
		input   string
		loc     *time.Location
		want    CalendarDay
		wantErr bool
	}{
		{name: "date only", input: "2024-05-01", loc: newYork, want: want},
		{name: "start of day", input: "2024-05-01T00:00:00", loc: newYork, want: want},
		{name: "end of day", input: "2024-05-01T23:59:59", loc: newYork, want: want},
		{name: "space separated", input: "2024-05-01 23:59", loc: tokyo, want: want},
		{name: "padded", input: "  2024-05-01 ", loc: tokyo, want: want},
		{name: "utc instant of local evening", input: "2024-05-02T03:30:00Z", loc: newYork, want: want},
		{name: "utc instant of local morning", input: "2024-04-30T15:30:00.000Z", loc: tokyo, want: want},
		{name: "offset matching location", input: "2024-05-01T23:59:59-05:00", loc: newYork, want: want},
		{name: "nil location", input: "2024-05-01", loc: nil, want: want},
		{name: "empty", input: "", loc: time.UTC, wantErr: true},
		{name: "garbage", input: "not a date", loc: time.UTC, wantErr: true},
		{name: "day first", input: "01-05-2024", loc: time.UTC, wantErr: true},
		{name: "impossible day", input: "2024-02-30", loc: time.UTC, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDay(tt.input, tt.loc)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDay(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDay(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDay(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDaySameDayDifferentTimes(t *testing.T) {
	a, err := ParseDay("2024-05-01T00:00:00", tokyo)
	if err != nil {
		t.Fatalf("ParseDay failed: %v", err)
	}
	b, err := ParseDay("2024-05-01T23:59:59", tokyo)
	if err != nil {
		t.Fatalf("ParseDay failed: %v", err)
	}
	if a != b {
		t.Errorf("same local day normalized differently: %v vs %v", a, b)
	}
}

func TestCalendarDayCompare(t *testing.T) {
	a := MustParseDay("2024-01-10")
	b := MustParseDay("2024-02-20")
	c := MustParseDay("2025-01-01")

	if !a.Before(b) || !b.Before(c) || !a.Before(c) {
		t.Error("expected a < b < c")
	}
	if !c.After(a) {
		t.Error("expected c after a")
	}
	if a.Compare(a) != 0 {
		t.Error("expected a == a")
	}
	if a.Ordinal() != 20240110 {
		t.Errorf("Ordinal() = %d, want 20240110", a.Ordinal())
	}
}

func TestCalendarDayAddDays(t *testing.T) {
	d := MustParseDay("2024-02-28")
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("AddDays(1) = %s, want 2024-02-29", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("AddDays(2) = %s, want 2024-03-01", got)
	}
	if got := MustParseDay("2024-01-01").AddDays(-1).String(); got != "2023-12-31" {
		t.Errorf("AddDays(-1) = %s, want 2023-12-31", got)
	}
}

func TestTodayAt(t *testing.T) {
	now := time.Date(2024, 6, 2, 2, 0, 0, 0, time.UTC)
	if got := TodayAt(now, newYork).String(); got != "2024-06-01" {
		t.Errorf("TodayAt in New York = %s, want 2024-06-01", got)
	}
	if got := TodayAt(now, tokyo).String(); got != "2024-06-02" {
		t.Errorf("TodayAt in Tokyo = %s, want 2024-06-02", got)
	}
}

func TestCalendarDayJSON(t *testing.T) {
	d := MustParseDay("2024-06-01")
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"2024-06-01"` {
		t.Errorf("Marshal = %s, want \"2024-06-01\"", data)
	}

	var back CalendarDay
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back != d {
		t.Errorf("round trip = %v, want %v", back, d)
	}

	if err := json.Unmarshal([]byte(`"2024-06-01T10:00:00Z"`), &back); err == nil {
		t.Error("expected error for timestamp in strict day field")
	}
}

func TestCalendarDayScan(t *testing.T) {
	var d CalendarDay
	if err := d.Scan("2024-06-01"); err != nil || d.String() != "2024-06-01" {
		t.Errorf("Scan(string) = %v, %v", d, err)
	}
	if err := d.Scan([]byte("2024-07-02")); err != nil || d.String() != "2024-07-02" {
		t.Errorf("Scan([]byte) = %v, %v", d, err)
	}
	if err := d.Scan(time.Date(2024, 8, 3, 0, 0, 0, 0, time.UTC)); err != nil || d.String() != "2024-08-03" {
		t.Errorf("Scan(time.Time) = %v, %v", d, err)
	}
	if err := d.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}

	v, err := MustParseDay("2024-06-01").Value()
	if err != nil || v != "2024-06-01" {
		t.Errorf("Value() = %v, %v", v, err)
	}
}
