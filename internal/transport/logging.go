// SPDX-License-Identifier: MIT
package transport

import (
	applog "tuner/internal/log"
	"tuner/internal/tuner"
)

// LoggingTransport writes telemetry to the application log: every record at
// debug level, and a one-line summary at info level whenever the matched note
// changes.
type LoggingTransport struct {
	lastLabel string
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Emit implements tuner.Sink.
func (lt *LoggingTransport) Emit(t tuner.Telemetry) {
	m := t.Match
	if m.Silent() {
		applog.Debugf("LogTransport: #%d silence (no spectral peak)", t.Sequence)
		return
	}
	applog.Debugf("LogTransport: #%d %s ref=%.2f Hz peak=%.2f Hz deviation=%+.2f Hz (%+.1f cents)",
		t.Sequence, m.Label, m.Reference, m.Peak, m.Deviation, m.Cents)
	if m.Label != lt.lastLabel {
		lt.lastLabel = m.Label
		applog.Infof("Nearest note: %s (peak %.2f Hz, %+.2f Hz off)", m.Label, m.Peak, m.Deviation)
	}
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Publisher = (*LoggingTransport)(nil)
