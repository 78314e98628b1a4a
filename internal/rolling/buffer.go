// SPDX-License-Identifier: MIT
//
// Package rolling keeps the trailing fixed-duration window of mono audio that
// the spectral analysis runs over.
package rolling

import (
	"errors"
	"fmt"
	"time"

	"tuner/internal/audio"
	applog "tuner/internal/log"
)

// DefaultDuration is the default window length in milliseconds.
const DefaultDuration = 5000

// MinSamples is the shortest window that can be analysed.
const MinSamples = 2

var (
	// ErrInvalidRate is returned when a chunk carries a non-positive sample rate.
	ErrInvalidRate = errors.New("rolling window: sample rate must be positive")
	// ErrWindowTooShort is returned when the window holds fewer than
	// MinSamples at a chunk's sample rate.
	ErrWindowTooShort = errors.New("rolling window: too short for sample rate")
)

// Buffer holds the most recent durationMs of mono samples at one sample rate.
//
// Once any audio has arrived the buffer is always exactly full: it is seeded
// with silence on first use and after a sample rate change, and truncated from
// the front after every append. The buffer is owned by a single goroutine.
type Buffer struct {
	durationMs int
	rate       int
	samples    []float64
}

// New creates an empty, uninitialised buffer spanning durationMs.
func New(durationMs int) (*Buffer, error) {
	if durationMs <= 0 {
		return nil, fmt.Errorf("rolling window duration must be positive, got %d ms", durationMs)
	}
	return &Buffer{durationMs: durationMs}, nil
}

// CapacityFor returns the number of samples durationMs spans at rate.
func CapacityFor(durationMs, rate int) int {
	return int(int64(durationMs) * int64(rate) / 1000)
}

// DurationMs returns the configured window length.
func (b *Buffer) DurationMs() int { return b.durationMs }

// Rate returns the active sample rate, or 0 before initialisation.
func (b *Buffer) Rate() int { return b.rate }

// Capacity returns the window length in samples at the active rate.
func (b *Buffer) Capacity() int { return CapacityFor(b.durationMs, b.rate) }

// Ready reports whether the buffer has been initialised.
func (b *Buffer) Ready() bool { return b.samples != nil }

// Append adds a chunk to the end of the window and drops samples from the
// front so that only the trailing window remains. It reports reset=true when
// a sample rate change discarded previously buffered audio.
func (b *Buffer) Append(chunk audio.Chunk) (reset bool, err error) {
	if chunk.SampleRate <= 0 {
		return false, fmt.Errorf("%w: got %d", ErrInvalidRate, chunk.SampleRate)
	}
	if c := CapacityFor(b.durationMs, chunk.SampleRate); c < MinSamples {
		return false, fmt.Errorf("%w: %d ms at %d Hz is %d sample(s), need at least %d",
			ErrWindowTooShort, b.durationMs, chunk.SampleRate, c, MinSamples)
	}

	if b.samples != nil && chunk.SampleRate != b.rate {
		applog.Warnf("Rolling: sample rate changed %d Hz -> %d Hz, discarding %s of buffered audio",
			b.rate, chunk.SampleRate, b.duration())
		reset = true
	}
	if b.samples == nil || reset {
		b.seed(chunk.SampleRate)
	}

	b.samples = append(b.samples, chunk.Samples...)
	b.truncate()
	return reset, nil
}

// seed (re)allocates the window at rate and fills it with silence. The
// backing array gets room for one extra window so that typical appends do not
// reallocate.
func (b *Buffer) seed(rate int) {
	capacity := CapacityFor(b.durationMs, rate)
	b.rate = rate
	b.samples = make([]float64, capacity, 2*capacity+1)
}

func (b *Buffer) truncate() {
	capacity := b.Capacity()
	excess := len(b.samples) - capacity
	if excess <= 0 {
		return
	}
	copy(b.samples, b.samples[excess:])
	b.samples = b.samples[:capacity]
}

func (b *Buffer) duration() time.Duration {
	if b.rate <= 0 {
		return 0
	}
	return time.Duration(len(b.samples)) * time.Second / time.Duration(b.rate)
}

// Current returns a read-only view of the window and true, or false while the
// buffer has not received any audio yet.
func (b *Buffer) Current() (View, bool) {
	if b.samples == nil {
		return View{}, false
	}
	return View{samples: b.samples, rate: b.rate}, true
}

// View is a read-only window onto a Buffer. It stays valid until the next
// Append on the buffer it came from.
type View struct {
	samples []float64
	rate    int
}

// Len returns the number of samples in the view.
func (v View) Len() int { return len(v.samples) }

// Rate returns the sample rate of the view.
func (v View) Rate() int { return v.rate }

// Sample returns sample i.
func (v View) Sample(i int) float64 { return v.samples[i] }

// CopyInto copies the samples into dst and returns the number copied.
func (v View) CopyInto(dst []float64) int { return copy(dst, v.samples) }

// Samples returns a copy of the samples.
func (v View) Samples() []float64 {
	out := make([]float64, len(v.samples))
	copy(out, v.samples)
	return out
}

// Duration returns the audio duration covered by the view.
func (v View) Duration() time.Duration {
	if v.rate <= 0 {
		return 0
	}
	return time.Duration(len(v.samples)) * time.Second / time.Duration(v.rate)
}
