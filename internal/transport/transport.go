// SPDX-License-Identifier: MIT
//
// Package transport delivers tuner telemetry to renderers: the log, WebSocket
// clients and UDP listeners.
package transport

import (
	"errors"
	"io"

	"tuner/internal/tuner"
)

// Publisher is a telemetry sink that owns resources which must be released.
// Emit must never block the processing loop.
type Publisher interface {
	tuner.Sink
	io.Closer
}

// Fanout forwards every telemetry record to each sink in order.
type Fanout []tuner.Sink

// Emit implements tuner.Sink.
func (f Fanout) Emit(t tuner.Telemetry) {
	for _, s := range f {
		s.Emit(t)
	}
}

// Close closes every sink implementing io.Closer and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

var _ Publisher = Fanout(nil)
