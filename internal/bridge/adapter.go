package bridge

import (
	"context"

	"github.com/avilev/frontdesk/internal/protocol"
	"github.com/avilev/frontdesk/internal/realtime"
)

// RealtimeDialer binds the realtime client and the advertised tool set
// into the dialer the bridge consumes.
type RealtimeDialer struct {
	Client *realtime.Client
	Tools  []protocol.ToolDefinition
}

func (d RealtimeDialer) Connect(ctx context.Context) (LLMSession, <-chan any, error) {
	session, events, err := d.Client.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	return session, events, nil
}

func (d RealtimeDialer) SessionConfig() protocol.SessionConfig {
	return d.Client.SessionConfig(d.Tools)
}
