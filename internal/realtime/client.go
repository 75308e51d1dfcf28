package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/avilev/frontdesk/internal/protocol"
	"github.com/avilev/frontdesk/internal/reliability"
)

const handshakeTimeout = 10 * time.Second

// Config identifies the realtime model endpoint for one deployment.
type Config struct {
	APIKey       string
	WSBaseURL    string
	Model        string
	Voice        string
	Instructions string
}

// Client dials realtime sessions. One session per call.
type Client struct {
	cfg Config
	log *logrus.Entry
}

func NewClient(cfg Config, log *logrus.Entry) *Client {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.openai.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o-realtime-preview-2024-12-17"
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = "alloy"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{cfg: cfg, log: log}
}

// SessionConfig builds the session.update payload: audio both ways in
// PCM16, input transcription on, server VAD with auto-response.
func (c *Client) SessionConfig(tools []protocol.ToolDefinition) protocol.SessionConfig {
	return protocol.SessionConfig{
		Modalities:              []string{"text", "audio"},
		Instructions:            c.cfg.Instructions,
		Voice:                   c.cfg.Voice,
		InputAudioFormat:        "pcm16",
		OutputAudioFormat:       "pcm16",
		InputAudioTranscription: &protocol.TranscriptionConf{Model: "whisper-1"},
		TurnDetection: &protocol.TurnDetectionConf{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMs:   300,
			SilenceDurationMs: 500,
			CreateResponse:    true,
		},
		Tools:       tools,
		ToolChoice:  "auto",
		Temperature: 0.8,
	}
}

// Connect dials one realtime socket and starts its read loop. The
// returned channel carries typed server events until the socket closes,
// then is closed.
func (c *Client) Connect(ctx context.Context) (*Session, <-chan any, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.WSBaseURL, "/") + "/v1/realtime")
	if err != nil {
		return nil, nil, fmt.Errorf("realtime url: %w", err)
	}
	q := u.Query()
	q.Set("model", c.cfg.Model)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.cfg.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout

	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			c.log.WithFields(logrus.Fields{
				"status":    resp.StatusCode,
				"retryable": reliability.IsRetryableHTTPStatus(resp.StatusCode),
			}).Warn("realtime handshake rejected")
			return nil, nil, fmt.Errorf("dial realtime websocket: status %d: %w", resp.StatusCode, err)
		}
		return nil, nil, fmt.Errorf("dial realtime websocket: %w", err)
	}
	return newSession(conn, c.log)
}
