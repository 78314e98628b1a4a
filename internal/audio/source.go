// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrSourceEmpty means no frame arrived within the receive timeout.
	ErrSourceEmpty = errors.New("audio source: no frames within timeout")

	// ErrSourceUnavailable means the source was never started or has been torn
	// down. It is terminal for a processing session.
	ErrSourceUnavailable = errors.New("audio source unavailable")
)

// Source is the inbound side of the tuner. Receive blocks for at most timeout
// waiting for the first frame, then returns every frame already queued behind
// it without further waiting.
type Source interface {
	Receive(timeout time.Duration) ([]AudioFrame, error)
}

// Queue is a bounded, thread-safe hand-off between a capture goroutine and
// the processing loop. Push never blocks: when the queue is full the oldest
// queued frame is dropped so the producer keeps real-time pace.
type Queue struct {
	frames    chan AudioFrame
	closed    chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// Compile-time check for the Source implementation.
var _ Source = (*Queue)(nil)

// NewQueue creates a queue holding at most size frames.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		frames: make(chan AudioFrame, size),
		closed: make(chan struct{}),
	}
}

// Push enqueues a frame. It returns ErrSourceUnavailable after Close.
func (q *Queue) Push(frame AudioFrame) error {
	select {
	case <-q.closed:
		return ErrSourceUnavailable
	default:
	}

	for {
		select {
		case q.frames <- frame:
			return nil
		default:
		}
		// Full: evict the oldest frame and retry.
		select {
		case <-q.frames:
			q.dropped.Add(1)
		default:
		}
	}
}

// Dropped returns how many frames were evicted because the consumer lagged.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Len returns the number of frames currently queued.
func (q *Queue) Len() int {
	return len(q.frames)
}

// Close tears the source down. Frames already queued are still delivered;
// once they are drained Receive reports ErrSourceUnavailable. Close is
// idempotent.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

// Receive implements Source.
func (q *Queue) Receive(timeout time.Duration) ([]AudioFrame, error) {
	var first AudioFrame

	select {
	case first = <-q.frames:
	default:
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case first = <-q.frames:
		case <-q.closed:
			// A producer may have pushed right before closing.
			select {
			case first = <-q.frames:
			default:
				return nil, ErrSourceUnavailable
			}
		case <-timer.C:
			return nil, ErrSourceEmpty
		}
	}

	out := make([]AudioFrame, 1, 1+len(q.frames))
	out[0] = first
	for {
		select {
		case f := <-q.frames:
			out = append(out, f)
		default:
			return out, nil
		}
	}
}
