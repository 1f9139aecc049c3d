package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"xdc-transfer/internal/form"
	"xdc-transfer/internal/scan"
)

const (
	maxMessageSize = 1024
	writeWait      = 5 * time.Second
	frameBuffer    = 16
)

// scanFrame is one decoder result sent by the page's camera loop.
type scanFrame struct {
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

const (
	frameErrorNoCode = "no_code"
	frameErrorCamera = "camera"
)

// handleScanSocket opens the scanner. The socket is the decode stream: the
// page sends one frame per decode attempt and the server closes the socket
// when the session ends.
func (s *Server) handleScanSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade scan WebSocket")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	stream := scan.NewChanStream(frameBuffer, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scanner closed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
	})
	session := s.form.OpenScanner(stream)
	log := s.logger.With().Uint64("session", session.ID()).Logger()
	log.Debug().Msg("Scan socket connected")

	defer func() {
		s.form.EndScan(session.ID())
		stream.Stop()
		log.Debug().Msg("Scan socket closed")
	}()

	for {
		var frame scanFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !session.Closed() {
				log.Warn().Err(err).Msg("Scan socket read failed")
			}
			return
		}

		switch {
		case frame.Error == frameErrorCamera:
			stream.Fail(&scan.CameraError{Reason: frame.Detail})
		case frame.Error != "":
			stream.Fail(scan.ErrNoCode)
		case frame.Text != "":
			stream.Push(frame.Text)
		}
	}
}

// handleFormSocket pushes the form state to the page on every change.
func (s *Server) handleFormSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade form WebSocket")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	updates := make(chan form.State, 8)
	unsubscribe := s.form.Subscribe(func(st form.State) {
		select {
		case updates <- st:
		default:
			// the writer is behind; it sends the latest state on its next turn
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		_ = conn.Close()
	}()

	send := func(st form.State) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(s.formView(st)) == nil
	}
	if !send(s.form.State()) {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-updates:
			if !send(s.form.State()) {
				return
			}
		}
	}
}
