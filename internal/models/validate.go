// ABOUTME: Field-level validation for submitted entries.
// ABOUTME: Collects failing fields into a ValidationError whose message is the first failure.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// FutureDateMessage is reported for entries dated after local today.
const FutureDateMessage = "Cannot select future dates"

// FieldError describes one failing input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failing field in input order.
type ValidationError struct {
	Fields []FieldError
}

// Error returns the first failure, which is what callers surface to users.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	return e.Fields[0].Message
}

// Add records a failing field.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns e as an error, or nil when nothing failed.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// EntryInput is a parsed, validated submission.
type EntryInput struct {
	Date         CalendarDay
	Measurements Measurements
}

// DecodeEntryInput parses a JSON body of the form
// {"date": "...", "sleep": 5, ...}. Dates are read in loc and must not be
// after today.
func DecodeEntryInput(body []byte, loc *time.Location, today CalendarDay) (*EntryInput, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		verr := &ValidationError{}
		verr.Add("body", "request body must be a JSON object")
		return nil, verr
	}

	day, m, verr := decodeEntryFields(fields, loc)
	if !day.IsZero() && day.After(today) {
		// Date problems are reported ahead of score problems.
		verr.Fields = append([]FieldError{{Field: "date", Message: FutureDateMessage}}, verr.Fields...)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return &EntryInput{Date: day, Measurements: m}, nil
}

// ValidateEntry checks a programmatic submission the same way
// DecodeEntryInput checks a JSON one.
func ValidateEntry(day CalendarDay, m Measurements, today CalendarDay) error {
	verr := &ValidationError{}
	switch {
	case day.IsZero():
		verr.Add("date", "%s", ErrEmptyDate.Error())
	case day.After(today):
		verr.Add("date", FutureDateMessage)
	}
	var mErr *ValidationError
	if errors.As(m.Validate(), &mErr) {
		verr.Fields = append(verr.Fields, mErr.Fields...)
	}
	return verr.OrNil()
}

// ParseMeasurements converts a name->score map, rejecting unknown names,
// missing biomarkers and out-of-range scores.
func ParseMeasurements(scores map[string]int) (Measurements, error) {
	m := make(Measurements, len(scores))
	for name, v := range scores {
		m[Biomarker(name)] = v
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// decodeEntryFields extracts the date and every biomarker from raw JSON
// fields. The returned ValidationError is never nil but may be empty.
func decodeEntryFields(fields map[string]json.RawMessage, loc *time.Location) (CalendarDay, Measurements, *ValidationError) {
	verr := &ValidationError{}

	var day CalendarDay
	if raw, ok := fields["date"]; !ok || isNull(raw) {
		verr.Add("date", "%s", ErrEmptyDate.Error())
	} else {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			verr.Add("date", "date must be a string")
		} else if d, err := ParseDay(s, loc); err != nil {
			verr.Add("date", "Invalid date")
		} else {
			day = d
		}
	}

	m := make(Measurements, len(AllBiomarkers))
	for _, b := range AllBiomarkers {
		raw, ok := fields[string(b)]
		if !ok || isNull(raw) {
			verr.Add(string(b), "%s is required", b)
			continue
		}
		v, err := decodeScore(raw)
		if err != nil {
			verr.Add(string(b), "%s must be an integer", b)
			continue
		}
		if v < MinScore || v > MaxScore {
			verr.Add(string(b), "%s must be between %d and %d", b, MinScore, MaxScore)
			continue
		}
		m[b] = v
	}

	return day, m, verr
}

// decodeScore accepts JSON numbers with no fractional part.
func decodeScore(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	if i, err := n.Int64(); err == nil {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return 0, fmt.Errorf("out of range: %s", n)
		}
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("not an integer: %s", n)
	}
	return int(f), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
