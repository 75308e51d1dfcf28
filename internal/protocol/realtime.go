package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RealtimeEventType identifies realtime-socket payload variants.
type RealtimeEventType string

// Client -> server message types.
const (
	RealtimeSessionUpdate    RealtimeEventType = "session.update"
	RealtimeInputAudioAppend RealtimeEventType = "input_audio_buffer.append"
	RealtimeItemCreate       RealtimeEventType = "conversation.item.create"
	RealtimeItemTruncate     RealtimeEventType = "conversation.item.truncate"
	RealtimeResponseCreate   RealtimeEventType = "response.create"
	RealtimeResponseCancel   RealtimeEventType = "response.cancel"
)

// Server -> client event types.
const (
	RealtimeSessionCreated          RealtimeEventType = "session.created"
	RealtimeSessionUpdated          RealtimeEventType = "session.updated"
	RealtimeSpeechStarted           RealtimeEventType = "input_audio_buffer.speech_started"
	RealtimeSpeechStopped           RealtimeEventType = "input_audio_buffer.speech_stopped"
	RealtimeAudioDelta              RealtimeEventType = "response.audio.delta"
	RealtimeAudioDone               RealtimeEventType = "response.audio.done"
	RealtimeAudioTranscriptDone     RealtimeEventType = "response.audio_transcript.done"
	RealtimeInputTranscriptComplete RealtimeEventType = "conversation.item.input_audio_transcription.completed"
	RealtimeFunctionArgsDone        RealtimeEventType = "response.function_call_arguments.done"
	RealtimeResponseDone            RealtimeEventType = "response.done"
	RealtimeError                   RealtimeEventType = "error"
	RealtimeRateLimitsUpdated       RealtimeEventType = "rate_limits.updated"
)

var ErrUnsupportedRealtimeEvent = errors.New("unsupported realtime event")

type realtimeEnvelope struct {
	Type RealtimeEventType `json:"type"`
}

// SessionConfig is the payload of a session.update message.
type SessionConfig struct {
	Modalities              []string           `json:"modalities"`
	Instructions            string             `json:"instructions,omitempty"`
	Voice                   string             `json:"voice,omitempty"`
	InputAudioFormat        string             `json:"input_audio_format"`
	OutputAudioFormat       string             `json:"output_audio_format"`
	InputAudioTranscription *TranscriptionConf `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetectionConf `json:"turn_detection,omitempty"`
	Tools                   []ToolDefinition   `json:"tools,omitempty"`
	ToolChoice              string             `json:"tool_choice,omitempty"`
	Temperature             float64            `json:"temperature,omitempty"`
}

type TranscriptionConf struct {
	Model string `json:"model"`
}

type TurnDetectionConf struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
	CreateResponse    bool    `json:"create_response"`
}

// ToolDefinition advertises one callable function to the model.
type ToolDefinition struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type SessionUpdateMessage struct {
	Type    RealtimeEventType `json:"type"`
	Session SessionConfig     `json:"session"`
}

type InputAudioAppendMessage struct {
	Type  RealtimeEventType `json:"type"`
	Audio string            `json:"audio"`
}

// ConversationItem is the item payload of conversation.item.create. It
// covers the two shapes the bridge emits: user text messages and
// function-call outputs.
type ConversationItem struct {
	Type    string            `json:"type"`
	Role    string            `json:"role,omitempty"`
	Content []ItemContentPart `json:"content,omitempty"`
	CallID  string            `json:"call_id,omitempty"`
	Output  string            `json:"output,omitempty"`
}

type ItemContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ItemCreateMessage struct {
	Type RealtimeEventType `json:"type"`
	Item ConversationItem  `json:"item"`
}

type ItemTruncateMessage struct {
	Type         RealtimeEventType `json:"type"`
	ItemID       string            `json:"item_id"`
	ContentIndex int               `json:"content_index"`
	AudioEndMs   int64             `json:"audio_end_ms"`
}

type ResponseCreateMessage struct {
	Type RealtimeEventType `json:"type"`
}

type ResponseCancelMessage struct {
	Type RealtimeEventType `json:"type"`
}

// NewUserTextItem builds a user-role text item. The wrap-up nudge at the
// duration ceiling is injected with a user role; the provider has no
// documented mid-conversation system role.
func NewUserTextItem(text string) ItemCreateMessage {
	return ItemCreateMessage{
		Type: RealtimeItemCreate,
		Item: ConversationItem{
			Type:    "message",
			Role:    "user",
			Content: []ItemContentPart{{Type: "input_text", Text: text}},
		},
	}
}

// NewFunctionOutputItem returns a tool result to the model.
func NewFunctionOutputItem(callID, outputJSON string) ItemCreateMessage {
	return ItemCreateMessage{
		Type: RealtimeItemCreate,
		Item: ConversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: outputJSON,
		},
	}
}

// Server event payloads.

type SessionCreatedEvent struct {
	Type    RealtimeEventType `json:"type"`
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
}

type SessionUpdatedEvent struct {
	Type RealtimeEventType `json:"type"`
}

type SpeechStartedEvent struct {
	Type         RealtimeEventType `json:"type"`
	AudioStartMs int64             `json:"audio_start_ms"`
	ItemID       string            `json:"item_id"`
}

type SpeechStoppedEvent struct {
	Type       RealtimeEventType `json:"type"`
	AudioEndMs int64             `json:"audio_end_ms"`
	ItemID     string            `json:"item_id"`
}

type AudioDeltaEvent struct {
	Type         RealtimeEventType `json:"type"`
	ResponseID   string            `json:"response_id"`
	ItemID       string            `json:"item_id"`
	OutputIndex  int               `json:"output_index"`
	ContentIndex int               `json:"content_index"`
	Delta        string            `json:"delta"`
}

type AudioDoneEvent struct {
	Type       RealtimeEventType `json:"type"`
	ResponseID string            `json:"response_id"`
	ItemID     string            `json:"item_id"`
}

type AudioTranscriptDoneEvent struct {
	Type       RealtimeEventType `json:"type"`
	ItemID     string            `json:"item_id"`
	Transcript string            `json:"transcript"`
}

type InputTranscriptCompletedEvent struct {
	Type       RealtimeEventType `json:"type"`
	ItemID     string            `json:"item_id"`
	Transcript string            `json:"transcript"`
}

type FunctionArgsDoneEvent struct {
	Type      RealtimeEventType `json:"type"`
	CallID    string            `json:"call_id"`
	Name      string            `json:"name"`
	Arguments string            `json:"arguments"`
}

type ResponseDoneEvent struct {
	Type     RealtimeEventType `json:"type"`
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response"`
}

type RealtimeErrorEvent struct {
	Type  RealtimeEventType `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type RateLimitsUpdatedEvent struct {
	Type       RealtimeEventType `json:"type"`
	RateLimits []struct {
		Name      string  `json:"name"`
		Limit     float64 `json:"limit"`
		Remaining float64 `json:"remaining"`
	} `json:"rate_limits"`
}

// ParseRealtimeEvent decodes one server event into its typed variant.
// Unknown types return ErrUnsupportedRealtimeEvent with the type name so
// the caller can log and drop them.
func ParseRealtimeEvent(raw []byte) (any, error) {
	var env realtimeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case RealtimeSessionCreated:
		return unmarshalRealtime[SessionCreatedEvent](raw)
	case RealtimeSessionUpdated:
		return unmarshalRealtime[SessionUpdatedEvent](raw)
	case RealtimeSpeechStarted:
		return unmarshalRealtime[SpeechStartedEvent](raw)
	case RealtimeSpeechStopped:
		return unmarshalRealtime[SpeechStoppedEvent](raw)
	case RealtimeAudioDelta:
		msg, err := unmarshalRealtime[AudioDeltaEvent](raw)
		if err != nil {
			return nil, err
		}
		if msg.Delta == "" {
			return nil, errors.New("invalid audio delta: missing delta")
		}
		return msg, nil
	case RealtimeAudioDone:
		return unmarshalRealtime[AudioDoneEvent](raw)
	case RealtimeAudioTranscriptDone:
		return unmarshalRealtime[AudioTranscriptDoneEvent](raw)
	case RealtimeInputTranscriptComplete:
		return unmarshalRealtime[InputTranscriptCompletedEvent](raw)
	case RealtimeFunctionArgsDone:
		return unmarshalRealtime[FunctionArgsDoneEvent](raw)
	case RealtimeResponseDone:
		return unmarshalRealtime[ResponseDoneEvent](raw)
	case RealtimeError:
		return unmarshalRealtime[RealtimeErrorEvent](raw)
	case RealtimeRateLimitsUpdated:
		return unmarshalRealtime[RateLimitsUpdatedEvent](raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRealtimeEvent, env.Type)
	}
}

func unmarshalRealtime[T any](raw []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(raw, &msg); err != nil {
		var zero T
		return zero, err
	}
	return msg, nil
}
