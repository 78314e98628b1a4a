// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"tuner/cmd"
	"tuner/internal/audio"
	"tuner/internal/build"
	"tuner/internal/capture"
	"tuner/internal/config"
	applog "tuner/internal/log"
	"tuner/internal/transport"
	"tuner/internal/transport/udp"
	"tuner/internal/tuner"
	"tuner/internal/tui"
)

// main is the entry point for the tuner.
// The program flow is divided into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - PortAudio callback pushes frames onto the queue
//   - The tuner session drains the queue, analyses and emits telemetry
//   - Sinks render telemetry on their own goroutines
//
// 3. Shutdown Phase (Cold Path):
//   - Close the capture on a termination signal, which ends the session
//   - Close sinks and PortAudio
func main() {
	if err := run(os.Args[1:]); err != nil {
		applog.Fatalf("%v", err)
	}
}

func run(args []string) error {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		return err
	}

	opts, err := cmd.ParseArgs(args)
	if errors.Is(err, cmd.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if err := opts.Apply(cfg); err != nil {
		return err
	}
	if err := applog.Configure(cfg.LogLevel, cfg.Debug); err != nil {
		return err
	}

	switch opts.Command {
	case cmd.CommandList:
		return listDevices()
	case cmd.CommandAnalyze:
		return analyzeFile(cfg, opts.File)
	default:
		return runLive(cfg, opts)
	}
}

func listDevices() error {
	if err := capture.Initialize(); err != nil {
		return err
	}
	defer capture.Terminate()
	return capture.ListDevices(os.Stdout)
}

// newSinks builds the configured telemetry sinks. The logging sink is
// always present unless the terminal display owns the screen.
func newSinks(cfg *config.Config, withLog bool) (transport.Fanout, error) {
	var sinks transport.Fanout
	if withLog {
		sinks = append(sinks, transport.NewLoggingTransport())
	}

	tc := cfg.Transport
	if tc.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(tc.WebSocketAddress, tc.WebSocketMaxPoints, cfg.Tuner.ReferencePitches)
		ws.Start()
		sinks = append(sinks, ws)
	}
	if tc.UDPEnabled {
		sender, err := udp.NewSender(tc.UDPTargetAddress)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		pub, err := udp.NewPublisher(sender, tc.UDPSendInterval, tc.UDPMaxPoints)
		if err != nil {
			sender.Close()
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, pub)
	}
	return sinks, nil
}

func newSession(cfg *config.Config) (*tuner.Session, error) {
	sc, err := cfg.Session()
	if err != nil {
		return nil, err
	}
	return tuner.NewSession(sc)
}

func analyzeFile(cfg *config.Config, path string) error {
	src, err := audio.OpenWAV(path, cfg.Audio.FramesPerBuffer, cfg.Audio.FramesPerPoll)
	if err != nil {
		return err
	}
	defer src.Close()
	applog.Infof("Analyzing %s (%d Hz, %d channel(s), %s)", path, src.SampleRate(), src.Channels(), src.Format())

	session, err := newSession(cfg)
	if err != nil {
		return err
	}
	sinks, err := newSinks(cfg, true)
	if err != nil {
		return err
	}
	defer sinks.Close()

	res, err := session.Run(src, sinks)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func printResult(res tuner.Result) {
	if res.Last == nil {
		fmt.Println("No audio analysed.")
		return
	}
	m := res.Last.Match
	if m.Silent() {
		fmt.Println("No pitch detected.")
		return
	}
	fmt.Printf("Nearest note: %s (reference %.2f Hz)\n", m.Label, m.Reference)
	fmt.Printf("Peak: %.2f Hz, deviation %+.2f Hz (%+.1f cents), resolution %.2f Hz\n",
		m.Peak, m.Deviation, m.Cents, res.Last.Resolution)
}

func runLive(cfg *config.Config, opts *cmd.Options) error {
	if err := capture.Initialize(); err != nil {
		return err
	}
	defer capture.Terminate()

	deviceName := ""
	if opts.Pick {
		sel, ok, err := tui.PickDevice(capture.Devices)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
		deviceName = sel.DeviceName
	}

	session, err := newSession(cfg)
	if err != nil {
		return err
	}

	queue := audio.NewQueue(cfg.Audio.QueueSize)
	capt, err := capture.New(capture.Options{
		DeviceID:        cfg.Audio.InputDevice,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		Channels:        cfg.Audio.InputChannels,
		LowLatency:      cfg.Audio.LowLatency,
	}, queue)
	if err != nil {
		return err
	}
	if deviceName == "" {
		deviceName = capt.Device().Name
	}

	sinks, err := newSinks(cfg, !opts.TUI)
	if err != nil {
		return err
	}
	defer sinks.Close()

	var display *tui.Display
	if opts.TUI {
		// The display owns the terminal.
		applog.SetOutput(io.Discard)
		display = tui.NewDisplay(deviceName, capt.Level)
		defer display.Close()
		sinks = append(sinks, display)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	var shuttingDown atomic.Bool
	shutdown := func() {
		if shuttingDown.CompareAndSwap(false, true) {
			if err := capt.Close(); err != nil {
				applog.Warnf("Error closing capture: %v", err)
			}
		}
	}
	defer shutdown()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		<-signals
		applog.Infof("Shutdown requested")
		shutdown()
	}()

	if err := capt.Start(); err != nil {
		return err
	}

	type outcome struct {
		res tuner.Result
		err error
	}
	finished := make(chan outcome, 1)
	go func() {
		res, err := session.Run(queue, sinks)
		if display != nil {
			display.Stopped(res.Reason.String(), err)
		}
		finished <- outcome{res, err}
	}()

	if display != nil {
		if err := display.Run(); err != nil {
			applog.Errorf("Display error: %v", err)
		}
		// Leaving the display ends the session.
		shutdown()
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	out := <-finished
	applog.Infof("Session ended after %d iterations (%s)", out.res.Iterations, out.res.Reason)
	if out.err != nil && !(shuttingDown.Load() && errors.Is(out.err, audio.ErrSourceUnavailable)) {
		return out.err
	}
	if display == nil {
		printResult(out.res)
	}
	return nil
}
