package scan

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoCode marks a frame in which the decoder found nothing.
var ErrNoCode = errors.New("no code detected in frame")

// CameraError is a camera or permission failure. Unlike decode misses it
// ends the session and is shown to the user.
type CameraError struct {
	Reason string
}

func (e *CameraError) Error() string {
	return fmt.Sprintf("camera unavailable: %s", e.Reason)
}

// Frame is one decoder result: either Text or Err is set.
type Frame struct {
	Text string
	Err  error
}

// Stream is a continuous decode stream bound to the camera. Stop releases
// the camera and must be safe to call more than once.
type Stream interface {
	Frames() <-chan Frame
	Stop()
}

// ChanStream is a Stream fed by Push/Fail, used by the WebSocket endpoint.
type ChanStream struct {
	frames chan Frame
	done   chan struct{}
	once   sync.Once
	onStop func()
}

// NewChanStream creates a stream with the given frame buffer. onStop, when
// not nil, runs once on the first Stop.
func NewChanStream(buffer int, onStop func()) *ChanStream {
	return &ChanStream{
		frames: make(chan Frame, buffer),
		done:   make(chan struct{}),
		onStop: onStop,
	}
}

func (s *ChanStream) Frames() <-chan Frame {
	return s.frames
}

// Push offers a decoded value. It reports false once the stream is stopped
// or when the buffer is full; dropped frames are harmless because the
// camera keeps producing them.
func (s *ChanStream) Push(text string) bool {
	return s.send(Frame{Text: text})
}

// Fail offers an error frame.
func (s *ChanStream) Fail(err error) bool {
	return s.send(Frame{Err: err})
}

func (s *ChanStream) send(f Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.frames <- f:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

func (s *ChanStream) Stop() {
	s.once.Do(func() {
		close(s.done)
		if s.onStop != nil {
			s.onStop()
		}
	})
}

// Done is closed after Stop.
func (s *ChanStream) Done() <-chan struct{} {
	return s.done
}
