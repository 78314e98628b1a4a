// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tuner/internal/analysis"
	applog "tuner/internal/log"
	"tuner/internal/transport"
	"tuner/internal/transport/udp"
	"tuner/internal/tuner"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Force debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error".
	Tuner     TunerConfig     `yaml:"tuner"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Audio     AudioConfig     `yaml:"audio"`
	Transport TransportConfig `yaml:"transport"`
}

// TunerConfig holds the processing loop settings.
type TunerConfig struct {
	WindowDurationMs int                 `yaml:"window_duration_ms"` // Rolling window length.
	PollTimeout      time.Duration       `yaml:"poll_timeout"`       // Silence that ends a session.
	ReferencePitches analysis.PitchTable `yaml:"reference_pitches"`  // Notes to match against, in tie-break order.
}

// AnalysisConfig selects the spectral analysis implementation.
type AnalysisConfig struct {
	FFTBackend string `yaml:"fft_backend"` // "gonum" or "go-dsp".
	FFTWindow  string `yaml:"fft_window"`  // "none", "hann", "hamming", ...
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per captured AudioFrame.
	InputChannels   int     `yaml:"input_channels"`    // 1 for mono, 2 for stereo.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low latency settings.
	QueueSize       int     `yaml:"queue_size"`        // Pending frames before the oldest is dropped.
	FramesPerPoll   int     `yaml:"frames_per_poll"`   // Frames per drain when replaying files.
}

// TransportConfig holds telemetry delivery settings.
type TransportConfig struct {
	WebSocketEnabled   bool          `yaml:"websocket_enabled"`
	WebSocketAddress   string        `yaml:"websocket_address"`
	WebSocketMaxPoints int           `yaml:"websocket_max_points"` // Trace points per message.
	UDPEnabled         bool          `yaml:"udp_enabled"`
	UDPTargetAddress   string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval    time.Duration `yaml:"udp_send_interval"`
	UDPMaxPoints       int           `yaml:"udp_max_points"` // Magnitudes per packet.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Tuner: TunerConfig{
			WindowDurationMs: DefaultWindowDurationMs,
			PollTimeout:      DefaultPollTimeout,
			ReferencePitches: analysis.GuitarStandard(),
		},
		Analysis: AnalysisConfig{
			FFTBackend: DefaultFFTBackend,
			FFTWindow:  DefaultFFTWindow,
		},
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
			LowLatency:      DefaultLowLatency,
			QueueSize:       DefaultQueueSize,
			FramesPerPoll:   DefaultFramesPerPoll,
		},
		Transport: TransportConfig{
			WebSocketAddress:   DefaultWebSocketAddress,
			WebSocketMaxPoints: DefaultWebSocketMaxPoints,
			UDPTargetAddress:   DefaultUDPTargetAddress,
			UDPSendInterval:    DefaultUDPSendInterval,
			UDPMaxPoints:       DefaultUDPMaxPoints,
		},
	}
}

// LoadConfig loads configuration from the YAML file at path. If path is
// empty, "config.yaml" in the working directory is used when present,
// otherwise the built-in defaults. Environment overrides are applied after
// the file and the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field that the tuner depends on.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level '%s' is not recognised", c.LogLevel))
	}

	t := c.Tuner
	check(t.WindowDurationMs >= MinWindowMs && t.WindowDurationMs <= MaxWindowMs,
		"tuner.window_duration_ms %d outside [%d, %d]", t.WindowDurationMs, MinWindowMs, MaxWindowMs)
	check(t.PollTimeout > 0, "tuner.poll_timeout must be positive, got %s", t.PollTimeout)
	if err := t.ReferencePitches.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tuner.reference_pitches: %w", err))
	}

	if _, err := analysis.ParseBackend(c.Analysis.FFTBackend); err != nil {
		errs = append(errs, fmt.Errorf("analysis.fft_backend: %w", err))
	}
	if _, err := analysis.ParseWindowFunc(c.Analysis.FFTWindow); err != nil {
		errs = append(errs, fmt.Errorf("analysis.fft_window: %w", err))
	}

	a := c.Audio
	check(a.InputDevice >= MinDeviceID, "audio.input_device %d is below %d", a.InputDevice, MinDeviceID)
	check(a.SampleRate >= MinSampleRate && a.SampleRate <= MaxSampleRate,
		"audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	check(a.FramesPerBuffer > 0 && a.FramesPerBuffer <= MaxBufferFrames,
		"audio.frames_per_buffer %d outside [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	check(a.InputChannels > 0 && a.InputChannels <= MaxInputChannels,
		"audio.input_channels %d outside [1, %d]", a.InputChannels, MaxInputChannels)
	check(a.QueueSize > 0, "audio.queue_size must be positive, got %d", a.QueueSize)
	check(a.FramesPerPoll > 0, "audio.frames_per_poll must be positive, got %d", a.FramesPerPoll)

	tr := c.Transport
	if tr.WebSocketEnabled {
		check(strings.Contains(tr.WebSocketAddress, ":"),
			"transport.websocket_address '%s' appears invalid (missing port?)", tr.WebSocketAddress)
	}
	if tr.UDPEnabled {
		check(strings.Contains(tr.UDPTargetAddress, ":"),
			"transport.udp_target_address '%s' appears invalid (missing port?)", tr.UDPTargetAddress)
		check(tr.UDPSendInterval > 0, "transport.udp_send_interval must be positive when UDP is enabled")
	}
	check(tr.WebSocketMaxPoints >= 0, "transport.websocket_max_points must not be negative")
	check(tr.UDPMaxPoints >= 0 && tr.UDPMaxPoints <= MaxUDPMaxPoints,
		"transport.udp_max_points %d outside [0, %d]", tr.UDPMaxPoints, MaxUDPMaxPoints)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Session converts the tuner and analysis sections into a session config.
func (c *Config) Session() (tuner.Config, error) {
	backend, err := analysis.ParseBackend(c.Analysis.FFTBackend)
	if err != nil {
		return tuner.Config{}, err
	}
	window, err := analysis.ParseWindowFunc(c.Analysis.FFTWindow)
	if err != nil {
		return tuner.Config{}, err
	}
	return tuner.Config{
		WindowDurationMs: c.Tuner.WindowDurationMs,
		PollTimeout:      c.Tuner.PollTimeout,
		Pitches:          c.Tuner.ReferencePitches,
		Analysis:         analysis.Options{Backend: backend, Window: window},
		MaxTracePoints:   c.TracePoints(),
	}, nil
}

// TracePoints returns the longest trace any enabled network transport sends,
// so the session never builds more points than will leave the process. With
// no network transport only the newest point of each trace is kept.
func (c *Config) TracePoints() int {
	points := 1
	tr := c.Transport
	if tr.WebSocketEnabled {
		n := tr.WebSocketMaxPoints
		if n <= 0 {
			n = transport.DefaultMaxPoints
		}
		points = max(points, n)
	}
	if tr.UDPEnabled {
		n := tr.UDPMaxPoints
		if n <= 0 || n > udp.MaxMagnitudes {
			n = udp.MaxMagnitudes
		}
		points = max(points, n)
	}
	return points
}

// applyEnvOverrides applies ENV_* variables on top of file values. Values
// that fail to parse are reported and ignored.
func (c *Config) applyEnvOverrides() {
	envBool := func(key string, dst *bool) {
		if val, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
				applog.Debugf("Config: overriding from %s: %v", key, b)
			} else {
				applog.Warnf("Config: ignoring %s=%q: %v", key, val, err)
			}
		}
	}
	envString := func(key string, dst *string) {
		if val, ok := os.LookupEnv(key); ok {
			*dst = val
			applog.Debugf("Config: overriding from %s: %s", key, val)
		}
	}
	envInt := func(key string, dst *int) {
		if val, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(val); err == nil {
				*dst = n
				applog.Debugf("Config: overriding from %s: %d", key, n)
			} else {
				applog.Warnf("Config: ignoring %s=%q: %v", key, val, err)
			}
		}
	}
	envDuration := func(key string, dst *time.Duration) {
		if val, ok := os.LookupEnv(key); ok {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
				applog.Debugf("Config: overriding from %s: %s", key, d)
			} else {
				applog.Warnf("Config: ignoring %s=%q: %v", key, val, err)
			}
		}
	}

	envBool("ENV_DEBUG", &c.Debug)
	envString("ENV_LOG_LEVEL", &c.LogLevel)

	envInt("ENV_WINDOW_MS", &c.Tuner.WindowDurationMs)
	envDuration("ENV_POLL_TIMEOUT", &c.Tuner.PollTimeout)
	envString("ENV_FFT_BACKEND", &c.Analysis.FFTBackend)
	envString("ENV_FFT_WINDOW", &c.Analysis.FFTWindow)

	envBool("ENV_WS_ENABLED", &c.Transport.WebSocketEnabled)
	envString("ENV_WS_ADDRESS", &c.Transport.WebSocketAddress)
	envInt("ENV_WS_MAX_POINTS", &c.Transport.WebSocketMaxPoints)

	envBool("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDPSendInterval)
	envInt("ENV_UDP_MAX_POINTS", &c.Transport.UDPMaxPoints)
}
