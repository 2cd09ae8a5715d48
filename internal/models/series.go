// ABOUTME: Time series view over entries for charting selected biomarkers.
// ABOUTME: Produces one chronological point list per biomarker.
package models

// SeriesPoint is one day's score for a biomarker.
type SeriesPoint struct {
	Date  CalendarDay `json:"date"`
	Value int         `json:"value"`
}

// Series is the chronological history of one biomarker.
type Series struct {
	Name   Biomarker     `json:"name"`
	Label  string        `json:"label"`
	Points []SeriesPoint `json:"points"`
}

// BuildSeries returns one series per name, in the order given. Entries are
// sorted chronologically first; the input slice is not modified.
func BuildSeries(entries []*Entry, names []Biomarker) []Series {
	sorted := make([]*Entry, len(entries))
	copy(sorted, entries)
	SortEntries(sorted)

	out := make([]Series, 0, len(names))
	for _, name := range names {
		s := Series{Name: name, Label: name.Label(), Points: make([]SeriesPoint, 0, len(sorted))}
		for _, e := range sorted {
			if v, ok := e.Measurements[name]; ok {
				s.Points = append(s.Points, SeriesPoint{Date: e.Date, Value: v})
			}
		}
		out = append(out, s)
	}
	return out
}
