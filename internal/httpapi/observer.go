package httpapi

import (
	"time"

	"github.com/avilev/frontdesk/internal/bridge"
	"github.com/avilev/frontdesk/internal/observability"
	"github.com/avilev/frontdesk/internal/session"
)

// callObserver fans bridge lifecycle signals out to the call registry
// and the Prometheus instruments.
type callObserver struct {
	registry *session.Registry
	metrics  *observability.Metrics
}

func (o callObserver) CallStarted(callSID, streamSID, callerPhone string) {
	o.registry.Start(callSID, streamSID, callerPhone)
	o.metrics.CallStarted()
}

func (o callObserver) CallEnded(callSID, reason string) {
	c, err := o.registry.End(callSID, reason)
	if err != nil {
		// The call never produced a start frame; nothing was counted.
		return
	}
	o.metrics.CallEnded(reason, time.Since(c.StartedAt))
}

func (o callObserver) StateChanged(callSID string, state bridge.State) {
	bargeIn, err := o.registry.SetState(callSID, string(state))
	if err != nil {
		return
	}
	if bargeIn {
		o.metrics.Window.ObserveIndicator("barge_in")
	}
}

func (o callObserver) FrameIn(bytes int)  { o.metrics.FrameIn(bytes) }
func (o callObserver) FrameOut(bytes int) { o.metrics.FrameOut(bytes) }

func (o callObserver) Reconnect(attempt int) {
	o.metrics.Reconnects.Inc()
	o.metrics.Window.ObserveIndicator("reconnect")
}

func (o callObserver) OutboundDropped() {
	o.metrics.DroppedOutbound.Inc()
	o.metrics.Window.ObserveIndicator("dropped_outbound")
}
