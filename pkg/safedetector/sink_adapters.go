package safedetector

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("safedetector: channel sink closed")

// StatusBatchHandler receives the statuses of one egress batch, oldest first.
type StatusBatchHandler func([]SafetyStatus) error

// NewCallbackSink adapts a StatusBatchHandler into a Sink so callers can plug
// plain functions into the egress pipeline.
func NewCallbackSink(name string, fn StatusBatchHandler) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the
// read-only channel, and a close function to call during shutdown. A full
// channel backs up the egress pipeline, never the detector.
func NewChannelSink(name string, buffer int) (Sink, <-chan []SafetyStatus, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []SafetyStatus, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, s.close
}

type callbackSink struct {
	name string
	fn   StatusBatchHandler
}

func (s *callbackSink) WriteBatch(statuses []SafetyStatus) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(statuses) == 0 {
		return nil
	}
	return s.fn(copyBatch(statuses))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []SafetyStatus
	closed chan struct{}
	once   sync.Once
	// writers hold the read lock while sending so close never races a send.
	mu sync.RWMutex
}

func (s *channelSink) WriteBatch(statuses []SafetyStatus) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(statuses) == 0 {
		return nil
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- copyBatch(statuses):
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

// copyBatch detaches the batch from the queue's backing array.
func copyBatch(statuses []SafetyStatus) []SafetyStatus {
	out := make([]SafetyStatus, len(statuses))
	copy(out, statuses)
	return out
}
