// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"testing"
	"time"

	"tuner/internal/config"
)

func TestParseArgsCommands(t *testing.T) {
	tests := []struct {
		args    []string
		command string
		file    string
	}{
		{nil, CommandRun, ""},
		{[]string{"--tui"}, CommandRun, ""},
		{[]string{"list"}, CommandList, ""},
		{[]string{"analyze", "take.wav"}, CommandAnalyze, "take.wav"},
	}
	for _, tt := range tests {
		opts, err := ParseArgs(tt.args)
		if err != nil {
			t.Fatalf("ParseArgs(%v): %v", tt.args, err)
		}
		if opts.Command != tt.command || opts.File != tt.file {
			t.Errorf("ParseArgs(%v) = %s %q", tt.args, opts.Command, opts.File)
		}
	}
}

func TestParseArgsErrors(t *testing.T) {
	for _, args := range [][]string{
		{"analyze"},
		{"analyze", "a.wav", "b.wav"},
		{"--bogus"},
		{"analyze", "a.wav", "--pick"},
		{"stray"},
	} {
		if _, err := ParseArgs(args); err == nil {
			t.Errorf("ParseArgs(%v) should fail", args)
		}
	}
}

func TestParseArgsHelp(t *testing.T) {
	if _, err := ParseArgs([]string{"--help"}); !errors.Is(err, ErrHelp) {
		t.Errorf("--help: err = %v, want ErrHelp", err)
	}
}

func TestApplyOnlyChangedFlags(t *testing.T) {
	opts, err := ParseArgs([]string{"--sample-rate", "44100", "-w", "2000", "--timeout", "3s", "-v"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Audio.InputChannels = 2 // as if set by a config file
	if err := opts.Apply(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Tuner.WindowDurationMs != 2000 || cfg.Tuner.PollTimeout != 3*time.Second {
		t.Errorf("flags not applied: %+v %+v", cfg.Audio, cfg.Tuner)
	}
	if cfg.Audio.InputChannels != 2 {
		t.Error("an unset flag overrode the file value")
	}
	if !cfg.Debug {
		t.Error("--verbose should enable debug")
	}
}

func TestApplyValidates(t *testing.T) {
	opts, err := ParseArgs([]string{"--channels", "0"})
	if err != nil {
		t.Fatal(err)
	}
	if err := opts.Apply(config.Default()); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}
