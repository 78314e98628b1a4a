// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays a PCM WAV stream as a Frame Source. Each Receive returns
// up to framesPerPoll frames of framesPerBuffer sample frames without waiting;
// once the stream is exhausted it reports ErrSourceEmpty, which the tuner
// treats as a stalled stream.
type WAVSource struct {
	closer        io.Closer
	decoder       *wav.Decoder
	buf           *goaudio.IntBuffer
	format        SampleFormat
	sampleRate    int
	channels      int
	framesPerPoll int
	exhausted     bool
	closed        bool
}

var _ Source = (*WAVSource)(nil)

// OpenWAV opens a WAV file for replay.
func OpenWAV(path string, framesPerBuffer, framesPerPoll int) (*WAVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	src, err := NewWAVSource(file, framesPerBuffer, framesPerPoll)
	if err != nil {
		file.Close()
		return nil, err
	}
	src.closer = file
	return src, nil
}

// NewWAVSource wraps an already opened WAV stream.
func NewWAVSource(r io.ReadSeeker, framesPerBuffer, framesPerPoll int) (*WAVSource, error) {
	if framesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}
	if framesPerPoll <= 0 {
		framesPerPoll = 1
	}

	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV stream", ErrUnsupportedFormat)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to locate PCM data: %w", err)
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	format := SampleFormat{BitDepth: bitDepth, Signed: bitDepth != 8}
	if err := format.validate(); err != nil {
		return nil, err
	}
	if channels <= 0 || decoder.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrMalformedFrame, channels, decoder.SampleRate)
	}

	return &WAVSource{
		decoder: decoder,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: channels,
				SampleRate:  int(decoder.SampleRate),
			},
			Data:           make([]int, framesPerBuffer*channels),
			SourceBitDepth: bitDepth,
		},
		format:        format,
		sampleRate:    int(decoder.SampleRate),
		channels:      channels,
		framesPerPoll: framesPerPoll,
	}, nil
}

// SampleRate returns the rate declared in the WAV header.
func (s *WAVSource) SampleRate() int { return s.sampleRate }

// Channels returns the channel count declared in the WAV header.
func (s *WAVSource) Channels() int { return s.channels }

// Format returns the sample encoding declared in the WAV header.
func (s *WAVSource) Format() SampleFormat { return s.format }

// Receive implements Source. The timeout is ignored because file reads never
// wait on a producer.
func (s *WAVSource) Receive(_ time.Duration) ([]AudioFrame, error) {
	if s.closed {
		return nil, ErrSourceUnavailable
	}
	if s.exhausted {
		return nil, ErrSourceEmpty
	}

	frames := make([]AudioFrame, 0, s.framesPerPoll)
	for n_ := 0; n_ < s.framesPerPoll; n_++ {
		n, err := s.decoder.PCMBuffer(s.buf)
		if err != nil {
			return nil, fmt.Errorf("%w: reading PCM: %w", ErrSourceUnavailable, err)
		}
		n -= n % s.channels
		if n == 0 {
			s.exhausted = true
			break
		}

		samples := make([]int32, n)
		for i, v := range s.buf.Data[:n] {
			samples[i] = int32(v)
		}
		frames = append(frames, AudioFrame{
			Samples:    samples,
			SampleRate: s.sampleRate,
			Channels:   s.channels,
			Format:     s.format,
			Timestamp:  time.Now(),
		})
	}

	if len(frames) == 0 {
		return nil, ErrSourceEmpty
	}
	return frames, nil
}

// Close releases the underlying file. Subsequent Receive calls report
// ErrSourceUnavailable.
func (s *WAVSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
