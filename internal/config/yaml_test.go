// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tuner/internal/analysis"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Tuner.WindowDurationMs != DefaultWindowDurationMs || cfg.Tuner.PollTimeout != DefaultPollTimeout {
		t.Errorf("unexpected tuner defaults: %+v", cfg.Tuner)
	}
	if len(cfg.Tuner.ReferencePitches) != 6 {
		t.Errorf("expected standard tuning, got %d pitches", len(cfg.Tuner.ReferencePitches))
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
tuner:
  window_duration_ms: 2000
  poll_timeout: 250ms
  reference_pitches:
    - {label: D, frequency: 73.42}
    - {label: A, frequency: 110}
analysis:
  fft_backend: go-dsp
  fft_window: hann
audio:
  sample_rate: 44100
  input_channels: 2
transport:
  udp_enabled: true
  udp_send_interval: 10ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tuner.WindowDurationMs != 2000 || cfg.Tuner.PollTimeout != 250*time.Millisecond {
		t.Errorf("tuner = %+v", cfg.Tuner)
	}
	if len(cfg.Tuner.ReferencePitches) != 2 || cfg.Tuner.ReferencePitches[0].Label != "D" {
		t.Errorf("pitches = %+v", cfg.Tuner.ReferencePitches)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.InputChannels != 2 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer || cfg.Transport.UDPTargetAddress != DefaultUDPTargetAddress {
		t.Errorf("defaults lost: %+v %+v", cfg.Audio, cfg.Transport)
	}

	sc, err := cfg.Session()
	if err != nil {
		t.Fatal(err)
	}
	if sc.Analysis.Backend != analysis.BackendGoDSP || sc.Analysis.Window != analysis.Hann {
		t.Errorf("analysis options = %+v", sc.Analysis)
	}
	if sc.PollTimeout != 250*time.Millisecond || len(sc.Pitches) != 2 {
		t.Errorf("session config = %+v", sc)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"window", func(c *Config) { c.Tuner.WindowDurationMs = 0 }, "window_duration_ms"},
		{"timeout", func(c *Config) { c.Tuner.PollTimeout = 0 }, "poll_timeout"},
		{"pitches", func(c *Config) { c.Tuner.ReferencePitches = nil }, "reference_pitches"},
		{"backend", func(c *Config) { c.Analysis.FFTBackend = "fftw" }, "fft_backend"},
		{"window func", func(c *Config) { c.Analysis.FFTWindow = "triangle" }, "fft_window"},
		{"device", func(c *Config) { c.Audio.InputDevice = -2 }, "input_device"},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 1000 }, "sample_rate"},
		{"frames", func(c *Config) { c.Audio.FramesPerBuffer = MaxBufferFrames + 1 }, "frames_per_buffer"},
		{"channels", func(c *Config) { c.Audio.InputChannels = 0 }, "input_channels"},
		{"queue", func(c *Config) { c.Audio.QueueSize = 0 }, "queue_size"},
		{"udp points negative", func(c *Config) { c.Transport.UDPMaxPoints = -1 }, "udp_max_points"},
		{"udp points above datagram", func(c *Config) { c.Transport.UDPMaxPoints = MaxUDPMaxPoints + 1 }, "udp_max_points"},
		{"udp address", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "udp_target_address"},
		{"ws address", func(c *Config) {
			c.Transport.WebSocketEnabled = true
			c.Transport.WebSocketAddress = ""
		}, "websocket_address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
	for _, n := range []int{0, MaxUDPMaxPoints} {
		cfg := Default()
		cfg.Transport.UDPMaxPoints = n
		if err := cfg.Validate(); err != nil {
			t.Errorf("udp_max_points %d rejected: %v", n, err)
		}
	}
}

func TestTracePoints(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*TransportConfig)
		want   int
	}{
		{"no network transport", func(*TransportConfig) {}, 1},
		{"websocket", func(tr *TransportConfig) { tr.WebSocketEnabled = true }, DefaultWebSocketMaxPoints},
		{"websocket unlimited", func(tr *TransportConfig) {
			tr.WebSocketEnabled = true
			tr.WebSocketMaxPoints = 0
		}, 1024},
		{"udp", func(tr *TransportConfig) { tr.UDPEnabled = true }, DefaultUDPMaxPoints},
		{"udp unlimited", func(tr *TransportConfig) {
			tr.UDPEnabled = true
			tr.UDPMaxPoints = 0
		}, MaxUDPMaxPoints},
		{"largest wins", func(tr *TransportConfig) {
			tr.WebSocketEnabled = true
			tr.UDPEnabled = true
			tr.UDPMaxPoints = 4096
		}, 4096},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg.Transport)
			if got := cfg.TracePoints(); got != tt.want {
				t.Errorf("TracePoints() = %d, want %d", got, tt.want)
			}
			sc, err := cfg.Session()
			if err != nil {
				t.Fatal(err)
			}
			if sc.MaxTracePoints != tt.want {
				t.Errorf("session MaxTracePoints = %d, want %d", sc.MaxTracePoints, tt.want)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_WINDOW_MS", "1500")
	t.Setenv("ENV_POLL_TIMEOUT", "2s")
	t.Setenv("ENV_FFT_BACKEND", "go-dsp")
	t.Setenv("ENV_FFT_WINDOW", "hann")
	t.Setenv("ENV_WS_MAX_POINTS", "many")
	t.Setenv("ENV_UDP_MAX_POINTS", "4096")
	t.Setenv("ENV_WS_ENABLED", "1")
	t.Setenv("ENV_WS_ADDRESS", ":9000")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "not-a-duration")

	cfg, err := LoadConfig(writeTempConfig(t, "log_level: warn\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug || cfg.LogLevel != "warn" {
		t.Errorf("debug = %v, level = %s", cfg.Debug, cfg.LogLevel)
	}
	if cfg.Tuner.WindowDurationMs != 1500 || cfg.Tuner.PollTimeout != 2*time.Second {
		t.Errorf("tuner = %+v", cfg.Tuner)
	}
	if cfg.Analysis.FFTBackend != "go-dsp" || cfg.Analysis.FFTWindow != "hann" {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	tr := cfg.Transport
	if !tr.WebSocketEnabled || tr.WebSocketAddress != ":9000" || !tr.UDPEnabled || tr.UDPTargetAddress != "10.0.0.2:7000" {
		t.Errorf("transport = %+v", tr)
	}
	if tr.UDPMaxPoints != 4096 || tr.WebSocketMaxPoints != DefaultWebSocketMaxPoints {
		t.Errorf("max points: udp %d, websocket %d", tr.UDPMaxPoints, tr.WebSocketMaxPoints)
	}
	if tr.UDPSendInterval != DefaultUDPSendInterval {
		t.Errorf("bad interval should be ignored, got %s", tr.UDPSendInterval)
	}
}
