// Package scan turns a continuous camera decode stream into a single
// "destination candidate accepted" event.
package scan

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Handler receives the outcome of a session. Each call carries the session
// id so a receiver can discard events from a session it no longer tracks.
type Handler interface {
	ScanAccepted(sessionID uint64, text string)
	ScanFailed(sessionID uint64, err error)
}

var lastSessionID atomic.Uint64

// Session owns one Stream subscription from activation until the first
// accepted value, a camera failure, or Close, whichever comes first.
type Session struct {
	id     uint64
	stream Stream
	logger *zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	exited chan struct{}
}

func NewSession(stream Stream, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Session{
		id:     lastSessionID.Add(1),
		stream: stream,
		logger: logger,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (s *Session) ID() uint64 {
	return s.id
}

// Start runs the pump in its own goroutine.
func (s *Session) Start(h Handler) {
	go s.run(h)
}

// Close ends the session and releases the stream. No frame read after Close
// is forwarded; an outcome the pump already claimed is still delivered, and
// the pump releases the stream once it has been.
func (s *Session) Close() {
	if s.markClosed() {
		s.stream.Stop()
	}
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Exited is closed when the pump goroutine has returned.
func (s *Session) Exited() <-chan struct{} {
	return s.exited
}

// markClosed ends the session without touching the stream. It returns true
// only for the caller that actually ended it.
func (s *Session) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.done)
	return true
}

// run delivers at most one outcome. The stream is stopped only after the
// handler has returned, so teardown triggered by Stop cannot overtake the
// delivery.
func (s *Session) run(h Handler) {
	defer close(s.exited)
	defer s.stream.Stop()
	defer s.markClosed()

	frames := s.stream.Frames()
	for {
		select {
		case <-s.done:
			return
		case f, ok := <-frames:
			if !ok {
				s.logger.Debug().Uint64("session", s.id).Msg("Decode stream ended")
				return
			}

			if f.Err != nil {
				var camErr *CameraError
				if !errors.As(f.Err, &camErr) {
					continue
				}
				if s.markClosed() {
					s.logger.Warn().Err(f.Err).Uint64("session", s.id).Msg("Camera failure, closing scanner")
					h.ScanFailed(s.id, f.Err)
				}
				return
			}

			text := strings.TrimSpace(f.Text)
			if text == "" {
				continue
			}
			if s.markClosed() {
				s.logger.Debug().Uint64("session", s.id).Str("candidate", text).Msg("Scan candidate accepted")
				h.ScanAccepted(s.id, text)
			}
			return
		}
	}
}
