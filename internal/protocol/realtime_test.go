package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseRealtimeSessionCreated(t *testing.T) {
	raw := []byte(`{"type": "session.created", "session": {"id": "sess_abc"}}`)
	msg, err := ParseRealtimeEvent(raw)
	if err != nil {
		t.Fatalf("ParseRealtimeEvent: %v", err)
	}
	ev, ok := msg.(SessionCreatedEvent)
	if !ok {
		t.Fatalf("event type = %T, want SessionCreatedEvent", msg)
	}
	if ev.Session.ID != "sess_abc" {
		t.Fatalf("session id = %q, want sess_abc", ev.Session.ID)
	}
}

func TestParseRealtimeAudioDelta(t *testing.T) {
	raw := []byte(`{
		"type": "response.audio.delta",
		"response_id": "resp_1",
		"item_id": "item_1",
		"output_index": 0,
		"content_index": 0,
		"delta": "UklGRg=="
	}`)
	msg, err := ParseRealtimeEvent(raw)
	if err != nil {
		t.Fatalf("ParseRealtimeEvent: %v", err)
	}
	ev, ok := msg.(AudioDeltaEvent)
	if !ok {
		t.Fatalf("event type = %T, want AudioDeltaEvent", msg)
	}
	if ev.Delta != "UklGRg==" || ev.ItemID != "item_1" {
		t.Fatalf("delta event = %+v", ev)
	}
}

func TestParseRealtimeAudioDeltaMissingDelta(t *testing.T) {
	raw := []byte(`{"type": "response.audio.delta", "item_id": "item_1"}`)
	if _, err := ParseRealtimeEvent(raw); err == nil {
		t.Fatal("expected error for audio delta without delta")
	}
}

func TestParseRealtimeSpeechEvents(t *testing.T) {
	msg, err := ParseRealtimeEvent([]byte(`{"type": "input_audio_buffer.speech_started", "audio_start_ms": 1200, "item_id": "item_2"}`))
	if err != nil {
		t.Fatalf("ParseRealtimeEvent(speech_started): %v", err)
	}
	started, ok := msg.(SpeechStartedEvent)
	if !ok {
		t.Fatalf("event type = %T, want SpeechStartedEvent", msg)
	}
	if started.AudioStartMs != 1200 {
		t.Fatalf("audio_start_ms = %d, want 1200", started.AudioStartMs)
	}

	msg, err = ParseRealtimeEvent([]byte(`{"type": "input_audio_buffer.speech_stopped", "audio_end_ms": 3400, "item_id": "item_2"}`))
	if err != nil {
		t.Fatalf("ParseRealtimeEvent(speech_stopped): %v", err)
	}
	stopped, ok := msg.(SpeechStoppedEvent)
	if !ok {
		t.Fatalf("event type = %T, want SpeechStoppedEvent", msg)
	}
	if stopped.AudioEndMs != 3400 {
		t.Fatalf("audio_end_ms = %d, want 3400", stopped.AudioEndMs)
	}
}

func TestParseRealtimeFunctionArgsDone(t *testing.T) {
	raw := []byte(`{
		"type": "response.function_call_arguments.done",
		"call_id": "call_9",
		"name": "create_appointment",
		"arguments": "{\"date\":\"2026-08-10\"}"
	}`)
	msg, err := ParseRealtimeEvent(raw)
	if err != nil {
		t.Fatalf("ParseRealtimeEvent: %v", err)
	}
	ev, ok := msg.(FunctionArgsDoneEvent)
	if !ok {
		t.Fatalf("event type = %T, want FunctionArgsDoneEvent", msg)
	}
	if ev.CallID != "call_9" || ev.Name != "create_appointment" {
		t.Fatalf("function call event = %+v", ev)
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(ev.Arguments), &args); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if args["date"] != "2026-08-10" {
		t.Fatalf("arguments = %q", ev.Arguments)
	}
}

func TestParseRealtimeTranscripts(t *testing.T) {
	msg, err := ParseRealtimeEvent([]byte(`{"type": "response.audio_transcript.done", "item_id": "item_3", "transcript": "Hello there."}`))
	if err != nil {
		t.Fatalf("ParseRealtimeEvent(audio_transcript.done): %v", err)
	}
	out, ok := msg.(AudioTranscriptDoneEvent)
	if !ok {
		t.Fatalf("event type = %T, want AudioTranscriptDoneEvent", msg)
	}
	if out.Transcript != "Hello there." {
		t.Fatalf("transcript = %q", out.Transcript)
	}

	msg, err = ParseRealtimeEvent([]byte(`{"type": "conversation.item.input_audio_transcription.completed", "item_id": "item_4", "transcript": "Book me Tuesday."}`))
	if err != nil {
		t.Fatalf("ParseRealtimeEvent(input transcription): %v", err)
	}
	in, ok := msg.(InputTranscriptCompletedEvent)
	if !ok {
		t.Fatalf("event type = %T, want InputTranscriptCompletedEvent", msg)
	}
	if in.Transcript != "Book me Tuesday." {
		t.Fatalf("transcript = %q", in.Transcript)
	}
}

func TestParseRealtimeErrorEvent(t *testing.T) {
	raw := []byte(`{"type": "error", "error": {"type": "invalid_request_error", "code": "session_expired", "message": "Session expired"}}`)
	msg, err := ParseRealtimeEvent(raw)
	if err != nil {
		t.Fatalf("ParseRealtimeEvent: %v", err)
	}
	ev, ok := msg.(RealtimeErrorEvent)
	if !ok {
		t.Fatalf("event type = %T, want RealtimeErrorEvent", msg)
	}
	if ev.Error.Code != "session_expired" {
		t.Fatalf("error code = %q, want session_expired", ev.Error.Code)
	}
}

func TestParseRealtimeResponseDone(t *testing.T) {
	raw := []byte(`{"type": "response.done", "response": {"id": "resp_1", "status": "completed"}}`)
	msg, err := ParseRealtimeEvent(raw)
	if err != nil {
		t.Fatalf("ParseRealtimeEvent: %v", err)
	}
	ev, ok := msg.(ResponseDoneEvent)
	if !ok {
		t.Fatalf("event type = %T, want ResponseDoneEvent", msg)
	}
	if ev.Response.Status != "completed" {
		t.Fatalf("response status = %q, want completed", ev.Response.Status)
	}
}

func TestParseRealtimeUnknownType(t *testing.T) {
	_, err := ParseRealtimeEvent([]byte(`{"type": "response.text.delta"}`))
	if !errors.Is(err, ErrUnsupportedRealtimeEvent) {
		t.Fatalf("error = %v, want ErrUnsupportedRealtimeEvent", err)
	}
	if !strings.Contains(err.Error(), "response.text.delta") {
		t.Fatalf("error %q does not name the event type", err)
	}
}

func TestParseRealtimeMalformedJSON(t *testing.T) {
	if _, err := ParseRealtimeEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestNewUserTextItemShape(t *testing.T) {
	raw, err := json.Marshal(NewUserTextItem("Please wrap up."))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got ItemCreateMessage
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != RealtimeItemCreate {
		t.Fatalf("type = %q, want %q", got.Type, RealtimeItemCreate)
	}
	if got.Item.Role != "user" || got.Item.Type != "message" {
		t.Fatalf("item = %+v", got.Item)
	}
	if len(got.Item.Content) != 1 || got.Item.Content[0].Type != "input_text" || got.Item.Content[0].Text != "Please wrap up." {
		t.Fatalf("content = %+v", got.Item.Content)
	}
}

func TestNewFunctionOutputItemShape(t *testing.T) {
	raw, err := json.Marshal(NewFunctionOutputItem("call_9", `{"success":true}`))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got ItemCreateMessage
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Item.Type != "function_call_output" || got.Item.CallID != "call_9" {
		t.Fatalf("item = %+v", got.Item)
	}
	if got.Item.Output != `{"success":true}` {
		t.Fatalf("output = %q", got.Item.Output)
	}
}

func TestSessionUpdateOmitsEmptyOptionals(t *testing.T) {
	msg := SessionUpdateMessage{
		Type: RealtimeSessionUpdate,
		Session: SessionConfig{
			Modalities:        []string{"audio", "text"},
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
		},
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, absent := range []string{"turn_detection", "tools", "tool_choice", "instructions", "temperature"} {
		if strings.Contains(string(raw), absent) {
			t.Fatalf("session.update contains %q when unset: %s", absent, raw)
		}
	}
}
