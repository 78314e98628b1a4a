// SPDX-License-Identifier: MIT
package capture

// peakAmplitude returns the largest absolute sample value without branching
// per sample. math.MinInt32 saturates to math.MaxInt32.
func peakAmplitude(buffer []int32) int32 {
	var maxAmplitude int32
	for _, sample := range buffer {
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		amplitude ^= amplitude >> 31
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	return maxAmplitude
}
