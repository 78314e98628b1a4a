// SPDX-License-Identifier: MIT
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"

	"tuner/internal/audio"
)

var fakeDevices = []*portaudio.DeviceInfo{
	{Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 44100,
		DefaultLowInputLatency: 5 * time.Millisecond, DefaultHighInputLatency: 20 * time.Millisecond},
	{Name: "Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000},
}

// withFakePortAudio swaps the PortAudio seams for canned devices.
func withFakePortAudio(t *testing.T) {
	t.Helper()
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return fakeDevices, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return fakeDevices[2], nil }
}

type fakeStream struct {
	started, stopped, closed bool
	startErr                 error
}

func (s *fakeStream) Start() error { s.started = true; return s.startErr }
func (s *fakeStream) Stop() error  { s.stopped = true; return nil }
func (s *fakeStream) Close() error { s.closed = true; return nil }

// withFakeStream captures the callback handed to openStream.
func withFakeStream(t *testing.T, fs *fakeStream) *func([]int32) {
	t.Helper()
	orig := openStream
	t.Cleanup(func() { openStream = orig })
	var cb func([]int32)
	openStream = func(params portaudio.StreamParameters, callback func([]int32)) (stream, error) {
		cb = callback
		return fs, nil
	}
	return &cb
}

func TestDevices(t *testing.T) {
	withFakePortAudio(t)
	devices, err := Devices()
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("device %d has ID %d", i, d.ID)
		}
	}
	if devices[0].IsInput() || devices[0].Kind() != "Output" {
		t.Errorf("device 0 = %+v", devices[0])
	}
	if devices[1].Kind() != "Input/Output" || devices[2].Kind() != "Input" {
		t.Errorf("kinds: %s, %s", devices[1].Kind(), devices[2].Kind())
	}
}

func TestInputDevice(t *testing.T) {
	withFakePortAudio(t)

	dev, err := InputDevice(DefaultDeviceID)
	if err != nil || dev.Name != "Microphone" {
		t.Fatalf("default = %v, %v", dev, err)
	}
	if dev, err := InputDevice(1); err != nil || dev.Name != "USB Interface" {
		t.Errorf("InputDevice(1) = %v, %v", dev, err)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(fakeDevices) + 10, "invalid device ID"},
		{"Non-input device", 0, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("err = %v, want substring %q", err, tt.substr)
			}
		})
	}
	if _, err := InputDevice(0); !errors.Is(err, ErrNoInput) {
		t.Errorf("err = %v, want ErrNoInput", err)
	}
}

func TestInputDevice_paErrors(t *testing.T) {
	withFakePortAudio(t)
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock default input error")
	}
	if _, err := InputDevice(-1); err == nil || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected mock error, got %v", err)
	}

	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return nil, fmt.Errorf("mock error") }
	if _, err := InputDevice(1); err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
	if _, err := Devices(); err == nil {
		t.Error("Devices should propagate the error")
	}
}

func TestNilDevices(t *testing.T) {
	withFakePortAudio(t)
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return nil, nil }

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("expected empty slice, got %v", devices)
	}
}

func TestInitializeTerminate(t *testing.T) {
	origInit, origTerm := paLibInitialize, paLibTerminate
	t.Cleanup(func() { paLibInitialize, paLibTerminate = origInit, origTerm })

	paLibInitialize = func() error { return nil }
	paLibTerminate = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("Initialize: %v", err)
	}
	if err := Terminate(); err != nil {
		t.Errorf("Terminate: %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	withFakePortAudio(t)
	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"[0] Built-in Output (Output)", "[1] USB Interface (Input/Output)", "Latency: Low=5.00ms, High=20.00ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestCaptureQueuesFrames(t *testing.T) {
	withFakePortAudio(t)
	fs := &fakeStream{}
	cb := withFakeStream(t, fs)

	q := audio.NewQueue(8)
	c, err := New(Options{DeviceID: 1, SampleRate: 44100, FramesPerBuffer: 4, Channels: 2, LowLatency: true}, q)
	if err != nil {
		t.Fatal(err)
	}
	if c.latency != 5*time.Millisecond {
		t.Errorf("latency = %s, want low latency", c.latency)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if !fs.started {
		t.Fatal("stream not started")
	}

	buf := []int32{1, -2, 3, -4, 5, -6, 7, math.MinInt32 + 1}
	(*cb)(buf)
	buf[0] = 99 // PortAudio reuses its buffer

	frames, err := q.Receive(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames", len(frames))
	}
	f := frames[0]
	if f.SampleRate != 44100 || f.Channels != 2 || f.Format != audio.FormatS32 || f.Len() != 4 {
		t.Errorf("frame = %+v", f)
	}
	if f.Samples[0] != 1 {
		t.Error("frame aliases the callback buffer")
	}
	if err := f.Validate(); err != nil {
		t.Errorf("captured frame invalid: %v", err)
	}
	if c.Frames() != 1 || c.Level() != 1 {
		t.Errorf("frames = %d, level = %v", c.Frames(), c.Level())
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !fs.stopped || !fs.closed {
		t.Error("stream not stopped and closed")
	}
	if _, err := q.Receive(10 * time.Millisecond); !errors.Is(err, audio.ErrSourceUnavailable) {
		t.Errorf("queue after Close: %v", err)
	}
	if err := c.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close: %v", err)
	}
	(*cb)(buf) // late callback must not panic
}

func TestCaptureStartFailure(t *testing.T) {
	withFakePortAudio(t)
	fs := &fakeStream{startErr: errors.New("device busy")}
	withFakeStream(t, fs)

	c, err := New(Options{DeviceID: -1, SampleRate: 48000, FramesPerBuffer: 256, Channels: 1}, audio.NewQueue(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err == nil || !strings.Contains(err.Error(), "device busy") {
		t.Errorf("err = %v", err)
	}
	if !fs.closed {
		t.Error("failed stream should be closed")
	}
}

func TestNewValidation(t *testing.T) {
	withFakePortAudio(t)
	q := audio.NewQueue(1)
	if _, err := New(Options{DeviceID: 2, SampleRate: 48000, FramesPerBuffer: 64, Channels: 2}, q); err == nil {
		t.Error("mono device should reject two channels")
	}
	if _, err := New(Options{DeviceID: 2, SampleRate: 48000, FramesPerBuffer: 64, Channels: 1}, nil); err == nil {
		t.Error("nil queue should be rejected")
	}
	if _, err := New(Options{DeviceID: 2, FramesPerBuffer: 64, Channels: 1}, q); err == nil {
		t.Error("zero sample rate should be rejected")
	}
}

func TestPeakAmplitude(t *testing.T) {
	tests := []struct {
		in   []int32
		want int32
	}{
		{nil, 0},
		{[]int32{0, 0}, 0},
		{[]int32{3, -7, 5}, 7},
		{[]int32{math.MinInt32, 1}, math.MaxInt32},
		{[]int32{math.MaxInt32}, math.MaxInt32},
	}
	for _, tt := range tests {
		if got := peakAmplitude(tt.in); got != tt.want {
			t.Errorf("peakAmplitude(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}

	buffer := make([]int32, 1024)
	for i := range buffer {
		buffer[i] = int32((i % 100) * 10000000)
	}
	allocs := testing.AllocsPerRun(100, func() { peakAmplitude(buffer) })
	if allocs > 0 {
		t.Errorf("Expected zero allocations, got %.1f", allocs)
	}
}
