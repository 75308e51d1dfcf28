package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/avilev/frontdesk/internal/protocol"
)

type fakeConn struct {
	mu       sync.Mutex
	incoming chan []byte
	written  []any
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.incoming
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, data, nil
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.incoming)
	}
	return nil
}

func (c *fakeConn) writtenMessages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.written))
	copy(out, c.written)
	return out
}

func TestSessionDeliversTypedEvents(t *testing.T) {
	conn := newFakeConn()
	s, events, err := NewSessionConn(conn, nil)
	if err != nil {
		t.Fatalf("NewSessionConn: %v", err)
	}
	defer s.Close()

	conn.incoming <- []byte(`{"type":"session.created","session":{"id":"sess_1"}}`)
	select {
	case msg := <-events:
		ev, ok := msg.(protocol.SessionCreatedEvent)
		if !ok {
			t.Fatalf("event type = %T, want SessionCreatedEvent", msg)
		}
		if ev.Session.ID != "sess_1" {
			t.Fatalf("session id = %q, want sess_1", ev.Session.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestSessionDropsUnknownAndMalformed(t *testing.T) {
	conn := newFakeConn()
	s, events, err := NewSessionConn(conn, nil)
	if err != nil {
		t.Fatalf("NewSessionConn: %v", err)
	}
	defer s.Close()

	conn.incoming <- []byte(`{"type":"response.text.delta","delta":"x"}`)
	conn.incoming <- []byte(`not json`)
	conn.incoming <- []byte(`{"type":"session.updated"}`)

	select {
	case msg := <-events:
		if _, ok := msg.(protocol.SessionUpdatedEvent); !ok {
			t.Fatalf("event type = %T, want SessionUpdatedEvent after drops", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestSessionEventChannelClosesOnSocketClose(t *testing.T) {
	conn := newFakeConn()
	s, events, err := NewSessionConn(conn, nil)
	if err != nil {
		t.Fatalf("NewSessionConn: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("event channel not closed")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSessionWritePayloads(t *testing.T) {
	conn := newFakeConn()
	s, _, err := NewSessionConn(conn, nil)
	if err != nil {
		t.Fatalf("NewSessionConn: %v", err)
	}
	defer s.Close()

	cfg := NewClient(Config{APIKey: "k"}, nil).SessionConfig(nil)
	if err := s.UpdateSession(cfg); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if err := s.AppendAudio("AAAA"); err != nil {
		t.Fatalf("AppendAudio: %v", err)
	}
	if err := s.CreateResponse(); err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}
	if err := s.CancelResponse(); err != nil {
		t.Fatalf("CancelResponse: %v", err)
	}
	if err := s.TruncateItem("item_1", 420); err != nil {
		t.Fatalf("TruncateItem: %v", err)
	}
	if err := s.SendUserText("wrap up"); err != nil {
		t.Fatalf("SendUserText: %v", err)
	}
	if err := s.SendFunctionOutput("call_1", `{"success":true}`); err != nil {
		t.Fatalf("SendFunctionOutput: %v", err)
	}

	written := conn.writtenMessages()
	if len(written) != 7 {
		t.Fatalf("written = %d messages, want 7", len(written))
	}

	update, ok := written[0].(protocol.SessionUpdateMessage)
	if !ok {
		t.Fatalf("first message type = %T, want SessionUpdateMessage", written[0])
	}
	if update.Session.TurnDetection == nil || update.Session.TurnDetection.Threshold != 0.5 {
		t.Fatalf("turn detection = %+v", update.Session.TurnDetection)
	}
	if update.Session.TurnDetection.SilenceDurationMs != 500 || update.Session.TurnDetection.PrefixPaddingMs != 300 {
		t.Fatalf("turn detection = %+v", update.Session.TurnDetection)
	}
	if update.Session.InputAudioFormat != "pcm16" || update.Session.OutputAudioFormat != "pcm16" {
		t.Fatalf("audio formats = %q/%q, want pcm16", update.Session.InputAudioFormat, update.Session.OutputAudioFormat)
	}
	if update.Session.Temperature != 0.8 {
		t.Fatalf("temperature = %v, want 0.8", update.Session.Temperature)
	}

	truncate, ok := written[4].(protocol.ItemTruncateMessage)
	if !ok {
		t.Fatalf("fifth message type = %T, want ItemTruncateMessage", written[4])
	}
	if truncate.ItemID != "item_1" || truncate.AudioEndMs != 420 || truncate.ContentIndex != 0 {
		t.Fatalf("truncate = %+v", truncate)
	}

	output, ok := written[6].(protocol.ItemCreateMessage)
	if !ok {
		t.Fatalf("seventh message type = %T, want ItemCreateMessage", written[6])
	}
	raw, _ := json.Marshal(output)
	var round protocol.ItemCreateMessage
	if err := json.Unmarshal(raw, &round); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if round.Item.CallID != "call_1" || round.Item.Type != "function_call_output" {
		t.Fatalf("function output item = %+v", round.Item)
	}
}
