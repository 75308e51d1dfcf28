package httpapi

import (
	"bytes"
	"encoding/xml"
	"errors"
	"net/url"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder. It
// intentionally avoids any provider SDK dependency; only the verbs
// needed at the webhook boundary are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Connect"`
	Stream  twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter,omitempty"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

// renderStreamTwiML produces the <Connect><Stream> response that hands
// the call's media to our websocket endpoint.
func renderStreamTwiML(streamURL, callerPhone string) (string, error) {
	if strings.TrimSpace(streamURL) == "" {
		return "", errors.New("twiml: stream url required")
	}
	stream := twimlStream{URL: streamURL}
	if callerPhone != "" {
		stream.Parameters = append(stream.Parameters, twimlParameter{
			Name:  "callerPhone",
			Value: callerPhone,
		})
	}
	r := twimlResponse{Verbs: []any{twimlConnect{Stream: stream}}}
	return renderTwiML(r)
}

func renderRejectTwiML() (string, error) {
	return renderTwiML(twimlResponse{Verbs: []any{twimlReject{Reason: "rejected"}}})
}

func renderTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// mediaStreamURL rewrites the public base URL into the wss endpoint
// Twilio should stream to.
func mediaStreamURL(publicURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(publicURL))
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("public url must include a host")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https", "":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("public url must be http(s) or ws(s)")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/voice/media-stream"
	u.RawQuery = ""
	return u.String(), nil
}
