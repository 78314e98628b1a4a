// SPDX-License-Identifier: MIT
package analysis

import "errors"

// ErrWindowTooShort is returned when fewer than two samples are analysed,
// which would leave no non-negative frequency bins.
var ErrWindowTooShort = errors.New("analysis: at least 2 samples are required")

// ErrInvalidRate is returned for a non-positive sample rate.
var ErrInvalidRate = errors.New("analysis: sample rate must be positive")

// Signal is a read-only mono sample sequence with a known rate. The rolling
// window view satisfies it.
type Signal interface {
	Len() int
	Rate() int
	CopyInto(dst []float64) int
}

// Spectrum is the non-negative-frequency half of a magnitude spectrum.
// Frequencies and Magnitudes always have the same length, floor(N/2) for a
// window of N samples. A Spectrum is never modified after Analyze returns it.
type Spectrum struct {
	Frequencies []float64 // Hz, ascending, Frequencies[k] = k*SampleRate/WindowLen
	Magnitudes  []float64 // |X[k]|, bin 0 halved
	SampleRate  int
	WindowLen   int
}

// Len returns the number of bins.
func (s Spectrum) Len() int { return len(s.Magnitudes) }

// Resolution returns the bin spacing in Hz.
func (s Spectrum) Resolution() float64 {
	if s.WindowLen == 0 {
		return 0
	}
	return float64(s.SampleRate) / float64(s.WindowLen)
}

// samples adapts a plain slice to Signal.
type samples struct {
	data []float64
	rate int
}

func (s samples) Len() int                   { return len(s.data) }
func (s samples) Rate() int                  { return s.rate }
func (s samples) CopyInto(dst []float64) int { return copy(dst, s.data) }
