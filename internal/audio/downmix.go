// SPDX-License-Identifier: MIT
package audio

// scale returns the normalisation divisor and the zero offset for a format.
// Signed samples are divided by 2^(bits-1); unsigned samples are shifted down
// by 2^(bits-1) first.
func scale(f SampleFormat) (divisor, offset float64) {
	full := float64(int64(1) << (f.BitDepth - 1))
	if f.Signed {
		return full, 0
	}
	return full, full
}

// Normalize converts a single integer sample to the [-1, 1) range.
func Normalize(sample int32, f SampleFormat) float64 {
	divisor, offset := scale(f)
	return (float64(sample) - offset) / divisor
}

// Downmix appends the mono rendering of frame to dst and returns the extended
// slice. Channels are averaged with equal weight after normalisation. The
// frame must already have passed Validate.
func Downmix(dst []float64, frame AudioFrame) []float64 {
	divisor, offset := scale(frame.Format)
	channels := frame.Channels
	n := frame.Len()

	if channels == 1 {
		for _, s := range frame.Samples {
			dst = append(dst, (float64(s)-offset)/divisor)
		}
		return dst
	}

	// Averaging and normalising are folded into one divisor.
	div := divisor * float64(channels)
	for i := 0; i < n; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(frame.Samples[base+c]) - offset
		}
		dst = append(dst, sum/div)
	}
	return dst
}
