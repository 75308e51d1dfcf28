package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TelephonyEvent identifies media-stream payload variants.
type TelephonyEvent string

const (
	TelephonyConnected TelephonyEvent = "connected"
	TelephonyStart     TelephonyEvent = "start"
	TelephonyMedia     TelephonyEvent = "media"
	TelephonyMark      TelephonyEvent = "mark"
	TelephonyStop      TelephonyEvent = "stop"
	TelephonyClear     TelephonyEvent = "clear"
)

var ErrUnsupportedTelephonyEvent = errors.New("unsupported telephony event")

type telephonyEnvelope struct {
	Event TelephonyEvent `json:"event"`
}

// ConnectedFrame is the first frame on a media-stream socket.
type ConnectedFrame struct {
	Event    TelephonyEvent `json:"event"`
	Protocol string         `json:"protocol,omitempty"`
	Version  string         `json:"version,omitempty"`
}

// MediaFormat describes the audio carried by the stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// StartPayload carries the stream identity and caller metadata.
type StartPayload struct {
	StreamSid        string            `json:"streamSid"`
	AccountSid       string            `json:"accountSid,omitempty"`
	CallSid          string            `json:"callSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
}

type StartFrame struct {
	Event          TelephonyEvent `json:"event"`
	SequenceNumber string         `json:"sequenceNumber,omitempty"`
	StreamSid      string         `json:"streamSid,omitempty"`
	Start          StartPayload   `json:"start"`
}

// CallerPhone returns the caller identity if the webhook passed it along.
func (f StartFrame) CallerPhone() string {
	if f.Start.CustomParameters == nil {
		return ""
	}
	if v := f.Start.CustomParameters["callerPhone"]; v != "" {
		return v
	}
	return f.Start.CustomParameters["from"]
}

// MediaPayload carries one base64 mu-law byte run.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type MediaFrame struct {
	Event     TelephonyEvent `json:"event"`
	StreamSid string         `json:"streamSid,omitempty"`
	Media     MediaPayload   `json:"media"`
}

type MarkPayload struct {
	Name string `json:"name"`
}

type MarkFrame struct {
	Event     TelephonyEvent `json:"event"`
	StreamSid string         `json:"streamSid,omitempty"`
	Mark      MarkPayload    `json:"mark"`
}

type StopPayload struct {
	AccountSid string `json:"accountSid,omitempty"`
	CallSid    string `json:"callSid,omitempty"`
}

type StopFrame struct {
	Event     TelephonyEvent `json:"event"`
	StreamSid string         `json:"streamSid,omitempty"`
	Stop      StopPayload    `json:"stop"`
}

// ClearFrame flushes the peer's buffered outbound audio on barge-in.
type ClearFrame struct {
	Event     TelephonyEvent `json:"event"`
	StreamSid string         `json:"streamSid"`
}

// NewOutboundMedia wraps transcoded audio in a media frame for the stream.
func NewOutboundMedia(streamSid, payloadBase64 string) MediaFrame {
	return MediaFrame{
		Event:     TelephonyMedia,
		StreamSid: streamSid,
		Media:     MediaPayload{Payload: payloadBase64},
	}
}

func NewClear(streamSid string) ClearFrame {
	return ClearFrame{Event: TelephonyClear, StreamSid: streamSid}
}

func NewMark(streamSid, name string) MarkFrame {
	return MarkFrame{
		Event:     TelephonyMark,
		StreamSid: streamSid,
		Mark:      MarkPayload{Name: name},
	}
}

// ParseTelephonyMessage decodes one inbound frame into its typed variant.
func ParseTelephonyMessage(raw []byte) (any, error) {
	var env telephonyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Event {
	case TelephonyConnected:
		var msg ConnectedFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TelephonyStart:
		var msg StartFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Start.StreamSid == "" {
			return nil, errors.New("invalid start frame: missing streamSid")
		}
		return msg, nil
	case TelephonyMedia:
		var msg MediaFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Media.Payload == "" {
			return nil, errors.New("invalid media frame: missing payload")
		}
		return msg, nil
	case TelephonyMark:
		var msg MarkFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TelephonyStop:
		var msg StopFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedTelephonyEvent
	}
}
