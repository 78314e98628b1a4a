// SPDX-License-Identifier: MIT
//
// Package udp publishes tuner telemetry as compact binary datagrams.
package udp

import (
	"fmt"
	"sync"
	"time"

	applog "tuner/internal/log"
	"tuner/internal/tuner"
)

// DefaultInterval paces datagrams at roughly 60 Hz.
const DefaultInterval = 16 * time.Millisecond

// Publisher keeps the most recent telemetry record and sends it on every
// tick of its own goroutine. Records that arrive faster than the interval
// replace each other; a record is sent at most once.
type Publisher struct {
	sender    *Sender
	interval  time.Duration
	maxPoints int

	mu      sync.Mutex
	latest  *tuner.Telemetry
	pending bool

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	buf []byte
	f32 []float32
}

// NewPublisher creates a publisher over sender and starts its goroutine.
// An interval <= 0 uses DefaultInterval. maxPoints <= 0 or above
// MaxMagnitudes is capped at MaxMagnitudes so every packet fits one datagram.
func NewPublisher(sender *Sender, interval time.Duration, maxPoints int) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: sender cannot be nil")
	}
	if interval <= 0 {
		applog.Warnf("UDPPublisher: invalid interval %s, defaulting to %s", interval, DefaultInterval)
		interval = DefaultInterval
	}
	if maxPoints <= 0 || maxPoints > MaxMagnitudes {
		maxPoints = MaxMagnitudes
	}
	p := &Publisher{
		sender:    sender,
		interval:  interval,
		maxPoints: maxPoints,
		done:      make(chan struct{}),
	}
	applog.Infof("UDPPublisher: publishing every %s (max %d magnitudes)", interval, maxPoints)

	p.wg.Add(1)
	go p.run()
	return p, nil
}

// Emit implements tuner.Sink.
func (p *Publisher) Emit(t tuner.Telemetry) {
	p.mu.Lock()
	p.latest = &t
	p.pending = true
	p.mu.Unlock()
}

func (p *Publisher) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.publish()
		case <-p.done:
			return
		}
	}
}

func (p *Publisher) publish() {
	p.mu.Lock()
	t := p.latest
	send := p.pending
	p.pending = false
	p.mu.Unlock()
	if !send {
		return
	}

	trace := tuner.Decimate(t.FrequencyTrace, p.maxPoints)
	p.f32 = p.f32[:0]
	for _, pt := range trace {
		p.f32 = append(p.f32, float32(pt.Y))
	}
	pkt := Packet{
		Sequence:   uint32(t.Sequence),
		Timestamp:  t.Timestamp.UnixNano(),
		Peak:       float32(t.Match.Peak),
		Reference:  float32(t.Match.Reference),
		Deviation:  float32(t.Match.Deviation),
		Label:      t.Match.Label,
		Magnitudes: p.f32,
	}

	var err error
	p.buf, err = pkt.AppendTo(p.buf[:0])
	if err != nil {
		applog.Errorf("UDPPublisher: encoding packet %d: %v", pkt.Sequence, err)
		return
	}
	if err := p.sender.Send(p.buf); err != nil {
		applog.Warnf("UDPPublisher: %v", err)
		return
	}
	applog.Debugf("UDPPublisher: sent packet %d (%d bytes)", pkt.Sequence, len(p.buf))
}

// Close stops the publishing goroutine and closes the sender.
func (p *Publisher) Close() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		err = p.sender.Close()
		applog.Debugf("UDPPublisher: stopped")
	})
	return err
}

var _ tuner.Sink = (*Publisher)(nil)
