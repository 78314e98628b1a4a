// SPDX-License-Identifier: MIT
/*
Package capture records from a PortAudio input device and hands the captured
buffers to the tuner as audio.AudioFrame values through an audio.Queue.

The PortAudio callback runs on its own thread. It copies the buffer, tags it
with the stream's sample rate, channel count and format, and pushes it onto
the queue without blocking; when the tuner falls behind the queue drops its
oldest frames.
*/
package capture

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"tuner/internal/audio"
	applog "tuner/internal/log"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("capture: closed")

// Options configures an input stream.
type Options struct {
	DeviceID        int
	SampleRate      float64
	FramesPerBuffer int
	Channels        int
	LowLatency      bool
}

type stream interface {
	Start() error
	Stop() error
	Close() error
}

var openStream = func(params portaudio.StreamParameters, callback func([]int32)) (stream, error) {
	return portaudio.OpenStream(params, callback)
}

// Capture owns one PortAudio input stream feeding a queue.
type Capture struct {
	opts    Options
	device  *portaudio.DeviceInfo
	latency time.Duration
	queue   *audio.Queue

	mu     sync.Mutex
	stream stream
	closed bool

	frames atomic.Uint64
	peak   atomic.Int32
	now    func() time.Time
}

// New resolves the input device and prepares a capture into queue.
func New(opts Options, queue *audio.Queue) (*Capture, error) {
	if queue == nil {
		return nil, fmt.Errorf("capture: queue cannot be nil")
	}
	if opts.Channels <= 0 || opts.FramesPerBuffer <= 0 || opts.SampleRate <= 0 {
		return nil, fmt.Errorf("capture: invalid options %+v", opts)
	}
	device, err := InputDevice(opts.DeviceID)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels > 0 && opts.Channels > device.MaxInputChannels {
		return nil, fmt.Errorf("capture: device %s has %d input channels, %d requested",
			device.Name, device.MaxInputChannels, opts.Channels)
	}

	c := &Capture{opts: opts, device: device, queue: queue, now: time.Now}
	if opts.LowLatency {
		c.latency = device.DefaultLowInputLatency
	} else {
		c.latency = device.DefaultHighInputLatency
	}
	return c, nil
}

// Device returns the resolved input device.
func (c *Capture) Device() *portaudio.DeviceInfo { return c.device }

// Start opens and starts the input stream.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.stream != nil {
		return nil
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: c.opts.Channels,
			Device:   c.device,
			Latency:  c.latency,
		},
		FramesPerBuffer: c.opts.FramesPerBuffer,
		SampleRate:      c.opts.SampleRate,
	}
	s, err := openStream(params, c.process)
	if err != nil {
		return fmt.Errorf("capture: opening stream on %s: %w", c.device.Name, err)
	}
	if err := s.Start(); err != nil {
		s.Close()
		return fmt.Errorf("capture: starting stream on %s: %w", c.device.Name, err)
	}
	c.stream = s
	applog.Infof("Capture: %s at %.0f Hz, %d channel(s), %d frames per buffer, latency %s",
		c.device.Name, c.opts.SampleRate, c.opts.Channels, c.opts.FramesPerBuffer, c.latency)
	return nil
}

// process is the PortAudio callback. The buffer belongs to PortAudio and is
// reused, so it is copied before being handed off.
func (c *Capture) process(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	samples := make([]int32, len(in))
	copy(samples, in)
	c.peak.Store(peakAmplitude(samples))

	frame := audio.AudioFrame{
		Samples:    samples,
		SampleRate: int(c.opts.SampleRate),
		Channels:   c.opts.Channels,
		Format:     audio.FormatS32,
		Timestamp:  c.now(),
	}
	if err := c.queue.Push(frame); err != nil {
		return
	}
	c.frames.Add(1)
}

// Frames returns how many frames were queued.
func (c *Capture) Frames() uint64 { return c.frames.Load() }

// Level returns the peak amplitude of the latest buffer in [0, 1].
func (c *Capture) Level() float64 {
	return float64(c.peak.Load()) / math.MaxInt32
}

// Close stops the stream and closes the queue, so the reader sees the
// source become unavailable.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.stream != nil {
		if err := c.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("capture: stopping stream: %w", err))
		}
		if err := c.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("capture: closing stream: %w", err))
		}
		c.stream = nil
	}
	if err := c.queue.Close(); err != nil {
		errs = append(errs, err)
	}
	applog.Infof("Capture: closed after %d frames (%d dropped by queue)", c.frames.Load(), c.queue.Dropped())
	return errors.Join(errs...)
}
