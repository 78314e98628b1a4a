// SPDX-License-Identifier: MIT
/*
Package tuner runs the pitch detection loop.

Each iteration drains the Frame Source once, appends the resulting audio to
the rolling window, analyses the window and matches the strongest frequency
to the reference pitch table. The loop is a two-state machine:

	RUNNING --(frames)--------------> RUNNING   (telemetry emitted)
	RUNNING --(no frames in time)---> STOPPED   (stalled, not an error)
	RUNNING --(source gone)---------> STOPPED   (unavailable, error)
	RUNNING --(malformed input)-----> STOPPED   (error)

STOPPED is terminal. A new session needs a new Source.
*/
package tuner

import (
	"errors"
	"fmt"
	"time"

	"tuner/internal/analysis"
	"tuner/internal/audio"
	applog "tuner/internal/log"
	"tuner/internal/rolling"
)

// ErrSessionStopped is returned when stepping or running a stopped session.
var ErrSessionStopped = errors.New("tuner: session is stopped")

// State is the loop state.
type State int

const (
	StateRunning State = iota
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StopReason explains a transition to StateStopped.
type StopReason int

const (
	ReasonNone StopReason = iota
	// ReasonStalled: the poll timeout elapsed without frames.
	ReasonStalled
	// ReasonUnavailable: the source was never started or was torn down.
	ReasonUnavailable
	// ReasonMalformed: a frame or chunk violated the input contract.
	ReasonMalformed
	// ReasonAnalysisFailed: the window could not be analysed.
	ReasonAnalysisFailed
)

func (r StopReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonStalled:
		return "stalled"
	case ReasonUnavailable:
		return "unavailable"
	case ReasonMalformed:
		return "malformed"
	case ReasonAnalysisFailed:
		return "analysis failed"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Config holds the session parameters.
type Config struct {
	WindowDurationMs int
	PollTimeout      time.Duration
	Pitches          analysis.PitchTable
	Analysis         analysis.Options
	MaxTracePoints   int // Points per telemetry trace; <= 0 keeps full traces.
}

// DefaultConfig returns a 5 s window, 1 s poll timeout and standard guitar
// tuning.
func DefaultConfig() Config {
	return Config{
		WindowDurationMs: rolling.DefaultDuration,
		PollTimeout:      audio.DefaultPollTimeout,
		Pitches:          analysis.GuitarStandard(),
	}
}

// Input is the outcome of one aggregator drain.
type Input struct {
	Chunks []audio.Chunk
	Err    error
}

// Transition is the result of one Step.
type Transition struct {
	State     State
	Reason    StopReason
	Reset     bool       // the rolling window was reset by a rate change
	Telemetry *Telemetry // nil unless an iteration completed while running
}

// Result summarises a finished Run.
type Result struct {
	Reason     StopReason
	Iterations int
	Emitted    int
	Last       *Telemetry
}

// Session owns the rolling window and analysis state of one tuning session.
// It is driven by a single goroutine.
type Session struct {
	cfg        Config
	aggregator *audio.Aggregator
	window     *rolling.Buffer
	analyzer   *analysis.Analyzer
	state      State
	reason     StopReason
	seq        uint64
	now        func() time.Time
}

// NewSession validates cfg and creates a running session.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Pitches.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reference pitches: %w", err)
	}
	window, err := rolling.New(cfg.WindowDurationMs)
	if err != nil {
		return nil, err
	}
	if cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("poll timeout must be positive, got %s", cfg.PollTimeout)
	}

	s := &Session{
		cfg:        cfg,
		aggregator: audio.NewAggregator(cfg.PollTimeout),
		window:     window,
		analyzer:   analysis.NewAnalyzer(cfg.Analysis),
		state:      StateRunning,
		now:        time.Now,
	}
	opts := s.analyzer.Options()
	applog.Infof("Tuner: session created (window: %d ms, poll timeout: %s, %d reference pitches, fft: %s/%s)",
		s.window.DurationMs(), cfg.PollTimeout, len(cfg.Pitches), opts.Backend, opts.Window)
	return s, nil
}

// State returns the current loop state.
func (s *Session) State() State { return s.state }

// Reason returns why the session stopped, or ReasonNone while running.
func (s *Session) Reason() StopReason { return s.reason }

// Analyzer returns the session's spectral analyzer.
func (s *Session) Analyzer() *analysis.Analyzer { return s.analyzer }

// Window returns the session's rolling window.
func (s *Session) Window() *rolling.Buffer { return s.window }

// Poll drains source once through the aggregator.
func (s *Session) Poll(source audio.Source) Input {
	chunks, err := s.aggregator.Collect(source)
	return Input{Chunks: chunks, Err: err}
}

func (s *Session) stop(reason StopReason) Transition {
	s.state = StateStopped
	s.reason = reason
	applog.Infof("Tuner: RUNNING -> STOPPED (%s)", reason)
	return Transition{State: StateStopped, Reason: reason}
}

// Step advances the state machine by one polled input. Stalls and source loss
// stop the session without an error; malformed input and analysis failures
// stop it and return the cause.
func (s *Session) Step(in Input) (Transition, error) {
	if s.state == StateStopped {
		return Transition{State: StateStopped, Reason: s.reason}, ErrSessionStopped
	}

	switch {
	case in.Err == nil && len(in.Chunks) == 0, errors.Is(in.Err, audio.ErrSourceEmpty):
		applog.Warnf("Tuner: no audio within %s, ending session", s.cfg.PollTimeout)
		return s.stop(ReasonStalled), nil
	case errors.Is(in.Err, audio.ErrSourceUnavailable):
		applog.Warnf("Tuner: audio source unavailable: %v", in.Err)
		return s.stop(ReasonUnavailable), nil
	case in.Err != nil:
		return s.stop(ReasonMalformed), in.Err
	}

	reset := false
	for _, chunk := range in.Chunks {
		r, err := s.window.Append(chunk)
		if err != nil {
			return s.stop(ReasonMalformed), err
		}
		reset = reset || r
	}

	view, _ := s.window.Current()
	spec, err := s.analyzer.Analyze(view)
	if err != nil {
		return s.stop(ReasonAnalysisFailed), fmt.Errorf("analysing window: %w", err)
	}
	match, err := analysis.Match(spec, s.cfg.Pitches)
	if err != nil {
		return s.stop(ReasonAnalysisFailed), fmt.Errorf("matching pitch: %w", err)
	}

	s.seq++
	t := &Telemetry{
		Sequence:       s.seq,
		Timestamp:      s.now(),
		Match:          match,
		SampleRate:     view.Rate(),
		Resolution:     spec.Resolution(),
		TimeTrace:      timeTrace(view, s.cfg.MaxTracePoints),
		FrequencyTrace: frequencyTrace(spec, s.cfg.MaxTracePoints),
	}
	applog.Debugf("Tuner: #%d %s peak=%.2f Hz deviation=%+.2f Hz", t.Sequence, match.Label, match.Peak, match.Deviation)

	return Transition{State: StateRunning, Reset: reset, Telemetry: t}, nil
}

// Run drives the loop until the session stops, emitting telemetry to sink
// after every completed iteration. A stalled stream ends the run with a nil
// error and Result.Reason == ReasonStalled; a lost source returns an error
// wrapping audio.ErrSourceUnavailable.
func (s *Session) Run(source audio.Source, sink Sink) (Result, error) {
	var res Result
	if s.state == StateStopped {
		res.Reason = s.reason
		return res, ErrSessionStopped
	}
	if sink == nil {
		sink = Discard
	}
	if source == nil {
		s.stop(ReasonUnavailable)
		res.Reason = ReasonUnavailable
		return res, fmt.Errorf("tuner: %w", audio.ErrSourceUnavailable)
	}

	for {
		tr, err := s.Step(s.Poll(source))
		res.Iterations++
		if tr.Telemetry != nil {
			sink.Emit(*tr.Telemetry)
			res.Emitted++
			res.Last = tr.Telemetry
		}
		if err != nil {
			res.Reason = tr.Reason
			return res, err
		}
		if tr.State == StateStopped {
			res.Reason = tr.Reason
			if tr.Reason == ReasonUnavailable {
				return res, fmt.Errorf("tuner: %w", audio.ErrSourceUnavailable)
			}
			return res, nil
		}
	}
}
