// SPDX-License-Identifier: MIT
/*
Package audio defines the audio units flowing into the tuner and the Frame
Source contract they arrive through.

Data flow:
  - A producer (microphone capture, WAV replay) emits AudioFrames.
  - A Source hands frames over to the processing loop, one bounded wait
    followed by a non-blocking drain.
  - The Aggregator validates, down-mixes and concatenates a drain into
    mono Chunks.

Down-mix policy:
  - Every sample is normalised from its declared SampleFormat to [-1, 1).
    Unsigned formats are re-centred around zero first.
  - The channels of each sample frame are averaged with equal weight.
*/
package audio

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedFrame is returned for frames that violate the frame contract
	// (empty, non-positive rate or channel count, ragged interleaving).
	ErrMalformedFrame = errors.New("malformed audio frame")

	// ErrUnsupportedFormat is returned for bit depths the down-mixer cannot scale.
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

// SampleFormat describes how the integer samples of a frame are encoded.
type SampleFormat struct {
	BitDepth int  // 8, 16, 24 or 32
	Signed   bool // false for offset-binary (e.g. 8-bit WAV)
}

var (
	FormatS16 = SampleFormat{BitDepth: 16, Signed: true}
	FormatS32 = SampleFormat{BitDepth: 32, Signed: true}
	FormatU8  = SampleFormat{BitDepth: 8, Signed: false}
)

// String returns a short name such as "s16" or "u8".
func (f SampleFormat) String() string {
	prefix := "s"
	if !f.Signed {
		prefix = "u"
	}
	return fmt.Sprintf("%s%d", prefix, f.BitDepth)
}

func (f SampleFormat) validate() error {
	switch f.BitDepth {
	case 8, 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, f.BitDepth)
	}
}

// AudioFrame is one delivered unit of raw audio from a capture transport.
// Samples are interleaved: frame i, channel c lives at Samples[i*Channels+c].
// Frames are treated as immutable once produced.
type AudioFrame struct {
	Samples    []int32
	SampleRate int
	Channels   int
	Format     SampleFormat
	Timestamp  time.Time
}

// Len returns the number of sample frames (samples per channel).
func (f AudioFrame) Len() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Duration returns the playback duration of the frame.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.Len()) * time.Second / time.Duration(f.SampleRate)
}

// Validate checks the frame against the frame contract.
func (f AudioFrame) Validate() error {
	if len(f.Samples) == 0 {
		return fmt.Errorf("%w: zero-length frame", ErrMalformedFrame)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrMalformedFrame, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d", ErrMalformedFrame, f.Channels)
	}
	if len(f.Samples)%f.Channels != 0 {
		return fmt.Errorf("%w: %d samples not divisible by %d channels",
			ErrMalformedFrame, len(f.Samples), f.Channels)
	}
	if err := f.Format.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return nil
}

// Chunk is the mono concatenation of one or more frames sharing a sample rate.
type Chunk struct {
	Samples    []float64
	SampleRate int
}

// Len returns the number of mono samples in the chunk.
func (c Chunk) Len() int {
	return len(c.Samples)
}

// Duration returns the playback duration of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}
