// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tuner/internal/build"
	"tuner/internal/config"
)

// Commands selected on the command line.
const (
	CommandRun     = "run"
	CommandList    = "list"
	CommandAnalyze = "analyze"
)

// ErrHelp is returned when cobra printed help or version output and there
// is nothing to run.
var ErrHelp = errors.New("help requested")

// overridable lists the flags that override configuration values.
var overridable = []string{
	"device", "sample-rate", "channels", "frames-per-buffer",
	"low-latency", "window-ms", "timeout",
}

// Options is the parsed command line.
type Options struct {
	Command    string
	ConfigPath string
	File       string // WAV file for CommandAnalyze
	TUI        bool
	Pick       bool
	Verbose    bool

	deviceID        int
	sampleRate      float64
	channels        int
	framesPerBuffer int
	lowLatency      bool
	windowMs        int
	timeout         time.Duration

	changed map[string]bool
}

// Apply overrides cfg with every flag given explicitly on the command line
// and validates the result.
func (o *Options) Apply(cfg *config.Config) error {
	if o.changed["device"] {
		cfg.Audio.InputDevice = o.deviceID
	}
	if o.changed["sample-rate"] {
		cfg.Audio.SampleRate = o.sampleRate
	}
	if o.changed["channels"] {
		cfg.Audio.InputChannels = o.channels
	}
	if o.changed["frames-per-buffer"] {
		cfg.Audio.FramesPerBuffer = o.framesPerBuffer
	}
	if o.changed["low-latency"] {
		cfg.Audio.LowLatency = o.lowLatency
	}
	if o.changed["window-ms"] {
		cfg.Tuner.WindowDurationMs = o.windowMs
	}
	if o.changed["timeout"] {
		cfg.Tuner.PollTimeout = o.timeout
	}
	if o.Verbose {
		cfg.Debug = true
	}
	return cfg.Validate()
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	info := build.Get()
	options := &Options{Command: CommandRun, changed: map[string]bool{}}
	ran := false

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Long:          info.Description + ". Listens to an input device and reports the nearest reference pitch.",
		Version:       info.VersionString(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			ran = true
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandList
			ran = true
			return nil
		},
	}
	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Run the tuner over a WAV file and print the final match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandAnalyze
			options.File = args[0]
			ran = true
			return nil
		},
	}
	rootCmd.AddCommand(listCmd, analyzeCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&options.ConfigPath, "config", "",
		"Path to a YAML configuration file (default: ./config.yaml if present)")

	// Audio Device Configuration
	flags.IntVarP(&options.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.IntVarP(&options.channels, "channels", "c", config.DefaultInputChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	flags.Float64VarP(&options.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&options.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&options.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use the device's low latency settings")

	// Tuner Configuration
	flags.IntVarP(&options.windowMs, "window-ms", "w", config.DefaultWindowDurationMs,
		"Rolling analysis window in milliseconds")
	flags.DurationVarP(&options.timeout, "timeout", "t", config.DefaultPollTimeout,
		"End the session after this long without audio")

	// Display
	flags.BoolVar(&options.TUI, "tui", false, "Show the terminal tuner display")
	flags.BoolVar(&options.Pick, "pick", false, "Choose the input device interactively")
	flags.BoolVarP(&options.Verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.SetArgs(args)
	executed, err := rootCmd.ExecuteC()
	if err != nil {
		return nil, err
	}
	if !ran {
		return nil, ErrHelp
	}

	for _, name := range overridable {
		options.changed[name] = executed.Flags().Changed(name)
	}
	if options.Command == CommandAnalyze && options.Pick {
		return nil, fmt.Errorf("--pick cannot be used with analyze")
	}
	return options, nil
}
