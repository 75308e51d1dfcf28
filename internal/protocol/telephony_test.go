package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseTelephonyStart(t *testing.T) {
	raw := []byte(`{
		"event": "start",
		"sequenceNumber": "1",
		"streamSid": "MZ123",
		"start": {
			"streamSid": "MZ123",
			"accountSid": "AC999",
			"callSid": "CA456",
			"tracks": ["inbound"],
			"customParameters": {"callerPhone": "+15550001111"},
			"mediaFormat": {"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1}
		}
	}`)
	msg, err := ParseTelephonyMessage(raw)
	if err != nil {
		t.Fatalf("ParseTelephonyMessage: %v", err)
	}
	frame, ok := msg.(StartFrame)
	if !ok {
		t.Fatalf("message type = %T, want StartFrame", msg)
	}
	if frame.Start.StreamSid != "MZ123" {
		t.Fatalf("streamSid = %q, want MZ123", frame.Start.StreamSid)
	}
	if frame.Start.CallSid != "CA456" {
		t.Fatalf("callSid = %q, want CA456", frame.Start.CallSid)
	}
	if frame.Start.MediaFormat.SampleRate != 8000 {
		t.Fatalf("sampleRate = %d, want 8000", frame.Start.MediaFormat.SampleRate)
	}
	if got := frame.CallerPhone(); got != "+15550001111" {
		t.Fatalf("CallerPhone = %q, want +15550001111", got)
	}
}

func TestParseTelephonyStartMissingStreamSid(t *testing.T) {
	raw := []byte(`{"event": "start", "start": {"callSid": "CA456", "mediaFormat": {}}}`)
	if _, err := ParseTelephonyMessage(raw); err == nil {
		t.Fatal("expected error for start frame without streamSid")
	}
}

func TestCallerPhoneFallsBackToFrom(t *testing.T) {
	frame := StartFrame{Start: StartPayload{
		CustomParameters: map[string]string{"from": "+15552223333"},
	}}
	if got := frame.CallerPhone(); got != "+15552223333" {
		t.Fatalf("CallerPhone = %q, want +15552223333", got)
	}
}

func TestCallerPhoneEmptyWhenAbsent(t *testing.T) {
	if got := (StartFrame{}).CallerPhone(); got != "" {
		t.Fatalf("CallerPhone = %q, want empty", got)
	}
}

func TestParseTelephonyMedia(t *testing.T) {
	raw := []byte(`{"event": "media", "streamSid": "MZ123", "media": {"track": "inbound", "payload": "//8A"}}`)
	msg, err := ParseTelephonyMessage(raw)
	if err != nil {
		t.Fatalf("ParseTelephonyMessage: %v", err)
	}
	frame, ok := msg.(MediaFrame)
	if !ok {
		t.Fatalf("message type = %T, want MediaFrame", msg)
	}
	if frame.Media.Payload != "//8A" {
		t.Fatalf("payload = %q, want //8A", frame.Media.Payload)
	}
}

func TestParseTelephonyMediaMissingPayload(t *testing.T) {
	raw := []byte(`{"event": "media", "media": {}}`)
	if _, err := ParseTelephonyMessage(raw); err == nil {
		t.Fatal("expected error for media frame without payload")
	}
}

func TestParseTelephonyMark(t *testing.T) {
	raw := []byte(`{"event": "mark", "streamSid": "MZ123", "mark": {"name": "chunk-7"}}`)
	msg, err := ParseTelephonyMessage(raw)
	if err != nil {
		t.Fatalf("ParseTelephonyMessage: %v", err)
	}
	frame, ok := msg.(MarkFrame)
	if !ok {
		t.Fatalf("message type = %T, want MarkFrame", msg)
	}
	if frame.Mark.Name != "chunk-7" {
		t.Fatalf("mark name = %q, want chunk-7", frame.Mark.Name)
	}
}

func TestParseTelephonyConnectedAndStop(t *testing.T) {
	msg, err := ParseTelephonyMessage([]byte(`{"event": "connected", "protocol": "Call", "version": "1.0.0"}`))
	if err != nil {
		t.Fatalf("ParseTelephonyMessage(connected): %v", err)
	}
	if _, ok := msg.(ConnectedFrame); !ok {
		t.Fatalf("message type = %T, want ConnectedFrame", msg)
	}

	msg, err = ParseTelephonyMessage([]byte(`{"event": "stop", "streamSid": "MZ123", "stop": {"callSid": "CA456"}}`))
	if err != nil {
		t.Fatalf("ParseTelephonyMessage(stop): %v", err)
	}
	frame, ok := msg.(StopFrame)
	if !ok {
		t.Fatalf("message type = %T, want StopFrame", msg)
	}
	if frame.Stop.CallSid != "CA456" {
		t.Fatalf("stop callSid = %q, want CA456", frame.Stop.CallSid)
	}
}

func TestParseTelephonyUnknownEvent(t *testing.T) {
	_, err := ParseTelephonyMessage([]byte(`{"event": "dtmf"}`))
	if !errors.Is(err, ErrUnsupportedTelephonyEvent) {
		t.Fatalf("error = %v, want ErrUnsupportedTelephonyEvent", err)
	}
}

func TestParseTelephonyMalformedJSON(t *testing.T) {
	if _, err := ParseTelephonyMessage([]byte(`{"event":`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestOutboundFrameShapes(t *testing.T) {
	media, err := json.Marshal(NewOutboundMedia("MZ123", "AAAA"))
	if err != nil {
		t.Fatalf("marshal media: %v", err)
	}
	var gotMedia map[string]any
	if err := json.Unmarshal(media, &gotMedia); err != nil {
		t.Fatalf("unmarshal media: %v", err)
	}
	if gotMedia["event"] != "media" || gotMedia["streamSid"] != "MZ123" {
		t.Fatalf("media frame = %s", media)
	}
	payload, _ := gotMedia["media"].(map[string]any)
	if payload["payload"] != "AAAA" {
		t.Fatalf("media payload = %s", media)
	}

	clear, err := json.Marshal(NewClear("MZ123"))
	if err != nil {
		t.Fatalf("marshal clear: %v", err)
	}
	want := `{"event":"clear","streamSid":"MZ123"}`
	if string(clear) != want {
		t.Fatalf("clear frame = %s, want %s", clear, want)
	}

	mark, err := json.Marshal(NewMark("MZ123", "greeting"))
	if err != nil {
		t.Fatalf("marshal mark: %v", err)
	}
	var gotMark MarkFrame
	if err := json.Unmarshal(mark, &gotMark); err != nil {
		t.Fatalf("unmarshal mark: %v", err)
	}
	if gotMark.Mark.Name != "greeting" {
		t.Fatalf("mark frame = %s", mark)
	}
}
