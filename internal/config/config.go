// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"tuner/internal/transport/udp"
)

// Boundaries and defaults for the tuner.
const (
	DefaultDeviceID        = MinDeviceID // System default input
	DefaultSampleRate      = 48000
	DefaultFramesPerBuffer = 1024
	DefaultInputChannels   = 1
	DefaultLowLatency      = false
	DefaultQueueSize       = 64 // Frames buffered between capture and loop
	DefaultFramesPerPoll   = 8  // WAV replay frames per drain

	DefaultWindowDurationMs = 5000
	DefaultPollTimeout      = time.Second
	DefaultFFTBackend       = "gonum"
	DefaultFFTWindow        = "none"

	DefaultWebSocketAddress   = "127.0.0.1:8080"
	DefaultWebSocketMaxPoints = 1024
	DefaultUDPTargetAddress   = "127.0.0.1:9090"
	DefaultUDPSendInterval    = 33 * time.Millisecond // ~30Hz
	DefaultUDPMaxPoints       = 512

	MinDeviceID      = -1 // -1 represents the system default device
	MinSampleRate    = 8000
	MaxSampleRate    = 192000
	MaxBufferFrames  = 8192
	MaxInputChannels = 32
	MinWindowMs      = 10
	MaxWindowMs      = 60000
	MaxUDPMaxPoints  = udp.MaxMagnitudes // One datagram per telemetry record
)
