// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmptySpectrum is returned when matching a spectrum without bins.
	ErrEmptySpectrum = errors.New("analysis: empty spectrum")
	// ErrEmptyTable is returned when matching against an empty pitch table.
	ErrEmptyTable = errors.New("analysis: empty reference pitch table")
)

// ReferencePitch is one target note.
type ReferencePitch struct {
	Label     string  `yaml:"label" json:"label"`
	Frequency float64 `yaml:"frequency" json:"frequency"`
}

// PitchTable is an ordered list of reference pitches. Order matters: when two
// entries are equally close to an observed frequency the earlier one wins.
type PitchTable []ReferencePitch

// GuitarStandard returns the six open strings in standard tuning, highest
// string first.
func GuitarStandard() PitchTable {
	return PitchTable{
		{Label: "high E", Frequency: 329.63},
		{Label: "B", Frequency: 246.94},
		{Label: "G", Frequency: 196.00},
		{Label: "D", Frequency: 146.83},
		{Label: "A", Frequency: 110.00},
		{Label: "low E", Frequency: 82.41},
	}
}

// Validate checks that the table is usable for matching.
func (t PitchTable) Validate() error {
	if len(t) == 0 {
		return ErrEmptyTable
	}
	for i, p := range t {
		if p.Label == "" {
			return fmt.Errorf("reference pitch %d has an empty label", i)
		}
		if !(p.Frequency > 0) || math.IsInf(p.Frequency, 0) {
			return fmt.Errorf("reference pitch %q has invalid frequency %v", p.Label, p.Frequency)
		}
	}
	return nil
}

// Nearest returns the index of the entry closest to freq. Ties resolve to
// the lowest index. It returns -1 for an empty table.
func (t PitchTable) Nearest(freq float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range t {
		if d := math.Abs(p.Frequency - freq); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// MatchResult is the outcome of matching one spectrum.
type MatchResult struct {
	Label     string  `json:"label"`
	Reference float64 `json:"reference_hz"`
	Peak      float64 `json:"peak_hz"`
	Deviation float64 `json:"deviation_hz"` // Peak - Reference
	Cents     float64 `json:"cents"`        // 0 when Peak is not positive
	PeakBin   int     `json:"peak_bin"`
	Magnitude float64 `json:"magnitude"`
}

// Silent reports whether the peak has no positive frequency. An all-zero
// window peaks on the DC bin at 0 Hz, and such a match carries no pitch
// information.
func (m MatchResult) Silent() bool {
	return m.Peak <= 0
}

// Match picks the strongest bin of spec (first one on ties) and maps its
// frequency to the nearest entry of table.
//
// There is no noise floor or harmonic check: a silent window still matches
// through the DC bin, and a strong overtone wins over a weaker fundamental.
func Match(spec Spectrum, table PitchTable) (MatchResult, error) {
	if spec.Len() == 0 {
		return MatchResult{}, ErrEmptySpectrum
	}
	if len(table) == 0 {
		return MatchResult{}, ErrEmptyTable
	}

	// floats.MaxIdx returns the first index holding the maximum.
	peakBin := floats.MaxIdx(spec.Magnitudes)
	peak := spec.Frequencies[peakBin]
	ref := table[table.Nearest(peak)]

	result := MatchResult{
		Label:     ref.Label,
		Reference: ref.Frequency,
		Peak:      peak,
		Deviation: peak - ref.Frequency,
		PeakBin:   peakBin,
		Magnitude: spec.Magnitudes[peakBin],
	}
	if peak > 0 {
		result.Cents = 1200 * math.Log2(peak/ref.Frequency)
	}
	return result, nil
}
