// ABOUTME: Biomarker names, labels, and storage columns for daily entries.
// ABOUTME: Defines the fourteen fixed self-reported scores and their 1-10 bounds.
package models

import (
	"fmt"
	"strings"
)

// Biomarker identifies one of the fixed self-reported daily scores.
type Biomarker string

const (
	// Body
	BiomarkerSleep    Biomarker = "sleep"
	BiomarkerSexDrive Biomarker = "sexDrive"

	// Digestion
	BiomarkerBloating         Biomarker = "bloating"
	BiomarkerGas              Biomarker = "gas"
	BiomarkerDailyPoop        Biomarker = "dailyPoop"
	BiomarkerOverallDigestion Biomarker = "overallDigestion"

	// Physical
	BiomarkerStrength     Biomarker = "strength"
	BiomarkerStamina      Biomarker = "stamina"
	BiomarkerArticulation Biomarker = "articulation"

	// Mind
	BiomarkerMood          Biomarker = "mood"
	BiomarkerEnergy        Biomarker = "energy"
	BiomarkerMindSharpness Biomarker = "mindSharpness"
	BiomarkerCreativity    Biomarker = "creativity"
	BiomarkerInspiration   Biomarker = "inspiration"
)

// Score bounds shared by every biomarker.
const (
	MinScore = 1
	MaxScore = 10
)

// AllBiomarkers lists every biomarker in canonical display order.
var AllBiomarkers = []Biomarker{
	BiomarkerSleep, BiomarkerSexDrive,
	BiomarkerBloating, BiomarkerGas, BiomarkerDailyPoop, BiomarkerOverallDigestion,
	BiomarkerStrength, BiomarkerStamina, BiomarkerArticulation,
	BiomarkerMood, BiomarkerEnergy, BiomarkerMindSharpness, BiomarkerCreativity, BiomarkerInspiration,
}

// DefaultChartBiomarkers is the selection a fresh dashboard starts with.
var DefaultChartBiomarkers = []Biomarker{BiomarkerSleep, BiomarkerMood, BiomarkerEnergy}

// BiomarkerLabels maps biomarkers to their human readable names.
var BiomarkerLabels = map[Biomarker]string{
	BiomarkerSleep:            "Sleep",
	BiomarkerSexDrive:         "Sex Drive",
	BiomarkerBloating:         "Bloating",
	BiomarkerGas:              "Gas",
	BiomarkerDailyPoop:        "Daily Poop",
	BiomarkerOverallDigestion: "Overall Digestion",
	BiomarkerStrength:         "Strength",
	BiomarkerStamina:          "Stamina",
	BiomarkerArticulation:     "Articulation",
	BiomarkerMood:             "Mood",
	BiomarkerEnergy:           "Energy",
	BiomarkerMindSharpness:    "Mind Sharpness",
	BiomarkerCreativity:       "Creativity",
	BiomarkerInspiration:      "Inspiration",
}

// Label returns the display name, falling back to the raw name.
func (b Biomarker) Label() string {
	if l, ok := BiomarkerLabels[b]; ok {
		return l
	}
	return string(b)
}

// Column returns the snake_case column name used by SQL backends.
func (b Biomarker) Column() string {
	var sb strings.Builder
	for i, r := range string(b) {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// IsValidBiomarker checks if a string names a known biomarker.
func IsValidBiomarker(s string) bool {
	for _, b := range AllBiomarkers {
		if string(b) == s {
			return true
		}
	}
	return false
}

// ParseBiomarkers parses a comma separated list of biomarker names.
// An empty string yields the default chart selection.
func ParseBiomarkers(csv string) ([]Biomarker, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return append([]Biomarker(nil), DefaultChartBiomarkers...), nil
	}
	if csv == "all" {
		return append([]Biomarker(nil), AllBiomarkers...), nil
	}

	var out []Biomarker
	seen := make(map[Biomarker]bool)
	for _, part := range strings.Split(csv, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !IsValidBiomarker(name) {
			return nil, fmt.Errorf("unknown biomarker: %s", name)
		}
		b := Biomarker(name)
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out, nil
}
