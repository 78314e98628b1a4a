// SPDX-License-Identifier: MIT
package tuner

import (
	"time"

	"tuner/internal/analysis"
)

// Point is one (x, y) pair of a trace.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Telemetry is the per-iteration output record. It is built from scratch on
// every iteration and shares no storage with the loop's buffers, so sinks may
// keep and redraw from it freely.
type Telemetry struct {
	Sequence   uint64               `json:"seq"`
	Timestamp  time.Time            `json:"timestamp"`
	Match      analysis.MatchResult `json:"match"`
	SampleRate int                  `json:"sample_rate"`
	Resolution float64              `json:"resolution_hz"`
	// TimeTrace spans the window: X is the offset in seconds (-window..0),
	// Y the amplitude. Both traces are decimated to the session's
	// MaxTracePoints when one is set.
	TimeTrace []Point `json:"time_trace"`
	// FrequencyTrace is the non-negative half spectrum: X in Hz, Y magnitude.
	FrequencyTrace []Point `json:"frequency_trace"`
}

// Sink consumes telemetry. Emit is called on the processing loop and must
// return promptly; a sink that cannot keep up should drop its oldest
// unrendered telemetry rather than block.
type Sink interface {
	Emit(t Telemetry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Telemetry)

// Emit implements Sink.
func (f SinkFunc) Emit(t Telemetry) { f(t) }

// Discard is a Sink that drops everything.
var Discard Sink = SinkFunc(func(Telemetry) {})

// samples is the read side of the rolling window view.
type samples interface {
	Len() int
	Rate() int
	Sample(i int) float64
}

// timeTrace builds (offset, amplitude) pairs for at most max samples of w
// (max <= 0 keeps all). The newest sample sits one sample period before 0.
func timeTrace(w samples, max int) []Point {
	n, rate := w.Len(), float64(w.Rate())
	out := make([]Point, traceLen(n, max))
	for i := range out {
		j := strideIndex(n, len(out), i)
		out[i] = Point{X: float64(j-n) / rate, Y: w.Sample(j)}
	}
	return out
}

func frequencyTrace(spec analysis.Spectrum, max int) []Point {
	n := spec.Len()
	out := make([]Point, traceLen(n, max))
	for i := range out {
		j := strideIndex(n, len(out), i)
		out[i] = Point{X: spec.Frequencies[j], Y: spec.Magnitudes[j]}
	}
	return out
}

func traceLen(n, max int) int {
	if max <= 0 || n <= max {
		return n
	}
	return max
}

// strideIndex maps output point i of m onto an input of n points, evenly
// strided and always ending on the last input point.
func strideIndex(n, m, i int) int {
	switch {
	case m == n:
		return i
	case m == 1:
		return n - 1
	}
	step := float64(n-1) / float64(m-1)
	return int(float64(i)*step + 0.5)
}

// Decimate returns at most max evenly strided points of trace, always keeping
// the last point. The input is returned unchanged when it already fits.
func Decimate(trace []Point, max int) []Point {
	if max <= 0 || len(trace) <= max {
		return trace
	}
	out := make([]Point, max)
	for i := range out {
		out[i] = trace[strideIndex(len(trace), max, i)]
	}
	return out
}
