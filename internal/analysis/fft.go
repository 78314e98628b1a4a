// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	applog "tuner/internal/log"
)

// Backend selects the FFT implementation.
type Backend int

const (
	// BackendGonum uses gonum's mixed-radix real FFT (FFTPACK port).
	BackendGonum Backend = iota
	// BackendGoDSP uses go-dsp's complex FFT, Bluestein for non power of 2.
	BackendGoDSP
)

func (b Backend) String() string {
	switch b {
	case BackendGonum:
		return "gonum"
	case BackendGoDSP:
		return "go-dsp"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend converts a backend name (case-insensitive) to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gonum", "":
		return BackendGonum, nil
	case "go-dsp", "godsp", "mjibson":
		return BackendGoDSP, nil
	default:
		return BackendGonum, fmt.Errorf("unknown FFT backend: '%s'", name)
	}
}

// WindowFunc defines the type for selecting a tapering window.
type WindowFunc int

const (
	// NoWindow analyses the raw samples (rectangular window).
	NoWindow WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = map[WindowFunc]string{
	NoWindow:        "none",
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a window name (case-insensitive) to a WindowFunc.
// Unknown names return NoWindow and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "rectangular":
		return NoWindow, nil
	case "hanning":
		return Hann, nil
	}
	for w, n := range windowNames {
		if strings.EqualFold(n, name) {
			return w, nil
		}
	}
	return NoWindow, fmt.Errorf("unknown FFT window function name: '%s'", name)
}

// fillWindow writes the window coefficients for windowType into coeffs.
func fillWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case NoWindow:
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analysis: unknown window function %d, analysing without a window", int(windowType))
	}
}

// Options configures an Analyzer.
type Options struct {
	Backend Backend
	Window  WindowFunc
}

// Analyzer computes the one-sided magnitude spectrum of a mono window.
//
// Scratch buffers are reused between calls and resized whenever the window
// length changes; the returned Spectrum is always freshly allocated. An
// Analyzer is not safe for concurrent use.
type Analyzer struct {
	opts    Options
	n       int
	gonum   *fourier.FFT
	input   []float64
	coeffs  []complex128
	taper   []float64
	tapered bool
}

// NewAnalyzer creates an analyzer with the given options.
func NewAnalyzer(opts Options) *Analyzer {
	applog.Debugf("Analysis: initializing analyzer (backend: %s, window: %s)", opts.Backend, opts.Window)
	return &Analyzer{opts: opts, tapered: opts.Window != NoWindow}
}

// Options returns the analyzer configuration.
func (a *Analyzer) Options() Options { return a.opts }

// Analyze computes the spectrum of sig. Frequencies are k*R/N for bins
// k in [0, N/2); the DC magnitude is halved.
func (a *Analyzer) Analyze(sig Signal) (Spectrum, error) {
	n, rate := sig.Len(), sig.Rate()
	if n < 2 {
		return Spectrum{}, fmt.Errorf("%w: got %d", ErrWindowTooShort, n)
	}
	if rate <= 0 {
		return Spectrum{}, fmt.Errorf("%w: got %d", ErrInvalidRate, rate)
	}

	a.resize(n)
	sig.CopyInto(a.input)
	if a.tapered {
		for i, w := range a.taper {
			a.input[i] *= w
		}
	}

	bins := n / 2
	spec := Spectrum{
		Frequencies: make([]float64, bins),
		Magnitudes:  make([]float64, bins),
		SampleRate:  rate,
		WindowLen:   n,
	}

	switch a.opts.Backend {
	case BackendGoDSP:
		full := dspfft.FFTReal(a.input)
		for k := 0; k < bins; k++ {
			spec.Magnitudes[k] = cmplx.Abs(full[k])
		}
	default:
		a.coeffs = a.gonum.Coefficients(a.coeffs, a.input)
		for k := 0; k < bins; k++ {
			spec.Magnitudes[k] = cmplx.Abs(a.coeffs[k])
		}
	}

	step := float64(rate) / float64(n)
	for k := 0; k < bins; k++ {
		spec.Frequencies[k] = float64(k) * step
	}
	spec.Magnitudes[0] /= 2

	return spec, nil
}

// AnalyzeSamples is Analyze over a plain slice.
func (a *Analyzer) AnalyzeSamples(data []float64, rate int) (Spectrum, error) {
	return a.Analyze(samples{data: data, rate: rate})
}

func (a *Analyzer) resize(n int) {
	if n == a.n {
		return
	}
	a.n = n
	a.input = make([]float64, n)
	if a.opts.Backend == BackendGonum {
		if a.gonum == nil {
			a.gonum = fourier.NewFFT(n)
		} else {
			a.gonum.Reset(n)
		}
		a.coeffs = make([]complex128, n/2+1)
	}
	if a.tapered {
		a.taper = make([]float64, n)
		fillWindow(a.taper, a.opts.Window)
	}
	applog.Debugf("Analysis: window length is now %d samples", n)
}
