package realtime

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/avilev/frontdesk/internal/protocol"
	"github.com/avilev/frontdesk/internal/reliability"
)

// Conn is the subset of the websocket connection the session uses.
// Tests substitute an in-memory pipe.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	Close() error
}

// Session is one live realtime socket. Writes are serialized by a
// mutex; reads happen on the session's own loop which feeds the event
// channel.
type Session struct {
	conn      Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	events    chan any
	log       *logrus.Entry
}

func newSession(conn *websocket.Conn, log *logrus.Entry) (*Session, <-chan any, error) {
	return NewSessionConn(conn, log)
}

// NewSessionConn wraps an established connection.
func NewSessionConn(conn Conn, log *logrus.Entry) (*Session, <-chan any, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Session{
		conn:   conn,
		events: make(chan any, 256),
		log:    log,
	}
	go s.readLoop()
	return s, s.events, nil
}

func (s *Session) readLoop() {
	defer s.safeClose()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				s.log.WithFields(logrus.Fields{
					"close_code": closeErr.Code,
					"retryable":  reliability.IsRetryableCloseCode(closeErr.Code),
				}).Info("model socket closed")
			}
			return
		}
		msg, err := protocol.ParseRealtimeEvent(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnsupportedRealtimeEvent) {
				s.log.WithError(err).Debug("dropping realtime event")
			} else {
				s.log.WithError(err).Warn("dropping malformed realtime frame")
			}
			continue
		}
		s.events <- msg
	}
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// UpdateSession sends session.update with the full configuration.
func (s *Session) UpdateSession(cfg protocol.SessionConfig) error {
	return s.writeJSON(protocol.SessionUpdateMessage{
		Type:    protocol.RealtimeSessionUpdate,
		Session: cfg,
	})
}

// AppendAudio feeds one base64 PCM16 chunk to the input buffer.
func (s *Session) AppendAudio(audioBase64 string) error {
	return s.writeJSON(protocol.InputAudioAppendMessage{
		Type:  protocol.RealtimeInputAudioAppend,
		Audio: audioBase64,
	})
}

// CreateResponse asks the model to speak.
func (s *Session) CreateResponse() error {
	return s.writeJSON(protocol.ResponseCreateMessage{Type: protocol.RealtimeResponseCreate})
}

// CancelResponse aborts the in-flight response on barge-in.
func (s *Session) CancelResponse() error {
	return s.writeJSON(protocol.ResponseCancelMessage{Type: protocol.RealtimeResponseCancel})
}

// TruncateItem trims an assistant item to what the caller actually
// heard before interrupting.
func (s *Session) TruncateItem(itemID string, audioEndMs int64) error {
	return s.writeJSON(protocol.ItemTruncateMessage{
		Type:         protocol.RealtimeItemTruncate,
		ItemID:       itemID,
		ContentIndex: 0,
		AudioEndMs:   audioEndMs,
	})
}

// SendUserText injects a synthetic user message.
func (s *Session) SendUserText(text string) error {
	return s.writeJSON(protocol.NewUserTextItem(text))
}

// SendFunctionOutput returns a tool result to the model.
func (s *Session) SendFunctionOutput(callID, outputJSON string) error {
	return s.writeJSON(protocol.NewFunctionOutputItem(callID, outputJSON))
}

// Close tears the socket down once; the read loop then drains out and
// closes the event channel.
func (s *Session) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		retErr = s.conn.Close()
	})
	return retErr
}

func (s *Session) safeClose() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
	close(s.events)
}
