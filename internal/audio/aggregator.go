// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"time"

	applog "tuner/internal/log"
)

// DefaultPollTimeout bounds the wait for the first frame of a drain.
const DefaultPollTimeout = time.Second

// Aggregator drains a Source once per call and turns the drained frames into
// mono chunks.
type Aggregator struct {
	timeout time.Duration
}

// NewAggregator creates an aggregator waiting at most timeout per drain.
// A non-positive timeout falls back to DefaultPollTimeout.
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Aggregator{timeout: timeout}
}

// Timeout returns the configured poll timeout.
func (a *Aggregator) Timeout() time.Duration {
	return a.timeout
}

// Collect performs one drain of source.
//
// Frames are concatenated in arrival order. A frame whose sample rate differs
// from its predecessor closes the current chunk and opens a new one, so the
// result normally holds exactly one chunk.
//
// Errors:
//   - ErrSourceEmpty when nothing arrived within the timeout
//   - ErrSourceUnavailable when the source is gone (terminal)
//   - ErrMalformedFrame (wrapped) for a frame violating the frame contract
func (a *Aggregator) Collect(source Source) ([]Chunk, error) {
	if source == nil {
		return nil, ErrSourceUnavailable
	}

	frames, err := source.Receive(a.timeout)
	if err != nil {
		if errors.Is(err, ErrSourceEmpty) || errors.Is(err, ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return Concat(frames)
}

// Concat validates and down-mixes frames into chunks, splitting at sample
// rate changes.
func Concat(frames []AudioFrame) ([]Chunk, error) {
	if len(frames) == 0 {
		return nil, ErrSourceEmpty
	}
	total := 0
	for i, f := range frames {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		total += f.Len()
	}

	chunks := make([]Chunk, 0, 1)
	current := Chunk{
		Samples:    make([]float64, 0, total),
		SampleRate: frames[0].SampleRate,
	}
	for _, f := range frames {
		if f.SampleRate != current.SampleRate {
			applog.Warnf("Aggregator: sample rate changed mid-drain (%d Hz -> %d Hz), splitting chunk",
				current.SampleRate, f.SampleRate)
			chunks = append(chunks, current)
			current = Chunk{SampleRate: f.SampleRate}
		}
		current.Samples = Downmix(current.Samples, f)
	}
	return append(chunks, current), nil
}
