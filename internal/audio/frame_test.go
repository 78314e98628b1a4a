// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestFrameValidate(t *testing.T) {
	tests := []struct {
		name    string
		frame   AudioFrame
		wantErr error
	}{
		{"valid mono", AudioFrame{Samples: []int32{1, 2}, SampleRate: 48000, Channels: 1, Format: FormatS16}, nil},
		{"valid stereo", AudioFrame{Samples: []int32{1, 2, 3, 4}, SampleRate: 44100, Channels: 2, Format: FormatS32}, nil},
		{"zero length", AudioFrame{SampleRate: 48000, Channels: 1, Format: FormatS16}, ErrMalformedFrame},
		{"zero rate", AudioFrame{Samples: []int32{1}, Channels: 1, Format: FormatS16}, ErrMalformedFrame},
		{"negative rate", AudioFrame{Samples: []int32{1}, SampleRate: -1, Channels: 1, Format: FormatS16}, ErrMalformedFrame},
		{"zero channels", AudioFrame{Samples: []int32{1}, SampleRate: 8000, Format: FormatS16}, ErrMalformedFrame},
		{"ragged", AudioFrame{Samples: []int32{1, 2, 3}, SampleRate: 8000, Channels: 2, Format: FormatS16}, ErrMalformedFrame},
		{"bad depth", AudioFrame{Samples: []int32{1}, SampleRate: 8000, Channels: 1, Format: SampleFormat{BitDepth: 12, Signed: true}}, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFrameDuration(t *testing.T) {
	f := AudioFrame{Samples: make([]int32, 960), SampleRate: 48000, Channels: 2, Format: FormatS16}
	if f.Len() != 480 {
		t.Errorf("Len() = %d, want 480", f.Len())
	}
	if f.Duration() != 10*time.Millisecond {
		t.Errorf("Duration() = %v, want 10ms", f.Duration())
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		sample int32
		format SampleFormat
		want   float64
	}{
		{0, FormatS16, 0},
		{-32768, FormatS16, -1},
		{16384, FormatS16, 0.5},
		{128, FormatU8, 0},
		{0, FormatU8, -1},
		{math.MinInt32, FormatS32, -1},
		{1 << 22, SampleFormat{BitDepth: 24, Signed: true}, 0.5},
	}
	for _, tt := range tests {
		if got := Normalize(tt.sample, tt.format); got != tt.want {
			t.Errorf("Normalize(%d, %s) = %v, want %v", tt.sample, tt.format, got, tt.want)
		}
	}
}

func TestDownmixAveragesChannels(t *testing.T) {
	frame := AudioFrame{
		// L/R pairs: (full, silent), (half, -half), (-full, -full)
		Samples:    []int32{-32768, 0, 16384, -16384, -32768, -32768},
		SampleRate: 48000,
		Channels:   2,
		Format:     FormatS16,
	}
	got := Downmix(nil, frame)
	want := []float64{-0.5, 0, -1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownmixAppends(t *testing.T) {
	dst := []float64{0.25}
	frame := AudioFrame{Samples: []int32{16384}, SampleRate: 8000, Channels: 1, Format: FormatS16}
	got := Downmix(dst, frame)
	if len(got) != 2 || got[0] != 0.25 || got[1] != 0.5 {
		t.Errorf("Downmix appended %v", got)
	}
}

func TestDownmixZeroAllocsWithCapacity(t *testing.T) {
	frame := AudioFrame{Samples: make([]int32, 2048), SampleRate: 48000, Channels: 2, Format: FormatS32}
	dst := make([]float64, 0, 1024)
	allocs := testing.AllocsPerRun(100, func() {
		_ = Downmix(dst[:0], frame)
	})
	if allocs > 0 {
		t.Errorf("expected zero allocations with preallocated dst, got %.1f", allocs)
	}
}
