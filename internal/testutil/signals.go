// SPDX-License-Identifier: MIT
//
// Package testutil holds signal generators and comparison helpers shared by
// the tuner's tests.
package testutil

import (
	"math"
	"math/rand"

	"tuner/internal/audio"
)

// Sine generates length samples of a sine at freqHz.
func Sine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// Noise generates white noise with a fixed seed.
func Noise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// SineFrames renders a sine as consecutive 16-bit frames of framesPerBuffer
// sample frames, duplicated across channels.
func SineFrames(freqHz float64, sampleRate, channels, framesPerBuffer, count int) []audio.AudioFrame {
	signal := Sine(freqHz, float64(sampleRate), 0.8, framesPerBuffer*count)
	frames := make([]audio.AudioFrame, count)
	for f := range frames {
		samples := make([]int32, framesPerBuffer*channels)
		for i := 0; i < framesPerBuffer; i++ {
			v := int32(signal[f*framesPerBuffer+i] * math.MaxInt16)
			for c := 0; c < channels; c++ {
				samples[i*channels+c] = v
			}
		}
		frames[f] = audio.AudioFrame{
			Samples:    samples,
			SampleRate: sampleRate,
			Channels:   channels,
			Format:     audio.FormatS16,
		}
	}
	return frames
}

// Window is a plain Signal over a slice.
type Window struct {
	Data       []float64
	SampleRate int
}

func (w Window) Len() int                   { return len(w.Data) }
func (w Window) Rate() int                  { return w.SampleRate }
func (w Window) CopyInto(dst []float64) int { return copy(dst, w.Data) }
