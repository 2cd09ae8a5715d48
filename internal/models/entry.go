// ABOUTME: Entry model holding one day's biomarker scores.
// ABOUTME: Serializes to the flat JSON shape used by the HTTP API and exports.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Measurements maps each biomarker to its 1-10 score.
type Measurements map[Biomarker]int

// UniformMeasurements returns measurements with every biomarker set to v.
func UniformMeasurements(v int) Measurements {
	m := make(Measurements, len(AllBiomarkers))
	for _, b := range AllBiomarkers {
		m[b] = v
	}
	return m
}

// Clone returns a copy of m.
func (m Measurements) Clone() Measurements {
	if m == nil {
		return nil
	}
	out := make(Measurements, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate checks that every biomarker is present and within bounds.
func (m Measurements) Validate() error {
	verr := &ValidationError{}
	for _, b := range AllBiomarkers {
		v, ok := m[b]
		if !ok {
			verr.Add(string(b), "%s is required", b)
			continue
		}
		if v < MinScore || v > MaxScore {
			verr.Add(string(b), "%s must be between %d and %d", b, MinScore, MaxScore)
		}
	}
	for b := range m {
		if !IsValidBiomarker(string(b)) {
			verr.Add(string(b), "unknown biomarker: %s", b)
		}
	}
	return verr.OrNil()
}

// Entry is one day's full set of biomarker scores.
type Entry struct {
	ID           int64
	Date         CalendarDay
	Measurements Measurements
}

// NewEntry creates an unsaved entry; the store assigns the ID.
func NewEntry(day CalendarDay, m Measurements) *Entry {
	return &Entry{Date: day, Measurements: m.Clone()}
}

// Score returns the score recorded for b.
func (e *Entry) Score(b Biomarker) int {
	return e.Measurements[b]
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	return &Entry{ID: e.ID, Date: e.Date, Measurements: e.Measurements.Clone()}
}

// MarshalJSON writes the flat form {"id":1,"date":"2024-06-01","sleep":5,...}
// with biomarkers in canonical order.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	buf.WriteString(strconv.FormatInt(e.ID, 10))
	buf.WriteString(`,"date":"`)
	buf.WriteString(e.Date.String())
	buf.WriteByte('"')
	for _, b := range AllBiomarkers {
		buf.WriteString(`,"`)
		buf.WriteString(string(b))
		buf.WriteString(`":`)
		buf.WriteString(strconv.Itoa(e.Measurements[b]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the flat form written by MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode entry: %w", err)
	}

	var id int64
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("decode entry id: %w", err)
		}
	}

	day, m, verr := decodeEntryFields(fields, time.UTC)
	if err := verr.OrNil(); err != nil {
		return err
	}

	*e = Entry{ID: id, Date: day, Measurements: m}
	return nil
}

// SortEntries orders entries ascending by day, breaking ties by ID.
func SortEntries(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].Date.Compare(entries[j].Date); c != 0 {
			return c < 0
		}
		return entries[i].ID < entries[j].ID
	})
}
