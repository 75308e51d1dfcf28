package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avilev/frontdesk/internal/protocol"
	"github.com/avilev/frontdesk/internal/reliability"
	"github.com/avilev/frontdesk/internal/sessioncache"
)

// Conversation states.
type State string

const (
	StateIdle        State = "idle"
	StateUserSpeak   State = "user-speaking"
	StateAISpeak     State = "ai-speaking"
	StateToolRunning State = "tool-running"
)

// End reasons recorded on teardown.
const (
	ReasonTelephonyClosed    = "telephony-closed"
	ReasonTelephonyStopped   = "telephony-stopped"
	ReasonLLMClosed          = "llm-closed"
	ReasonDurationCeiling    = "duration-ceiling"
	ReasonReconnectExhausted = "llm-reconnect-exhausted"
	ReasonFatalError         = "fatal-error"
)

const (
	peerQueueSize    = 256
	wsWriteDeadline  = 10 * time.Second
	reconnectBase    = time.Second
	hardCutDelay     = 12 * time.Second
	statsPutInterval = 100
)

const wrapUpPrompt = "We are almost out of time for this call. Please politely " +
	"wrap up the conversation in one or two short sentences and say goodbye."

// TelephonyConn is the already-accepted media-stream socket.
type TelephonyConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	Close() error
}

// LLMSession is one live model socket.
type LLMSession interface {
	UpdateSession(cfg protocol.SessionConfig) error
	AppendAudio(audioBase64 string) error
	CreateResponse() error
	CancelResponse() error
	TruncateItem(itemID string, audioEndMs int64) error
	SendUserText(text string) error
	SendFunctionOutput(callID, outputJSON string) error
	Close() error
}

// Dialer opens model sockets, once at call start and again on
// reconnect.
type Dialer interface {
	Connect(ctx context.Context) (LLMSession, <-chan any, error)
	SessionConfig() protocol.SessionConfig
}

// ToolRunner executes one model-requested function and returns the
// JSON result.
type ToolRunner interface {
	Dispatch(ctx context.Context, callSID, name, arguments string) json.RawMessage
}

// CacheWriter mirrors call state to the session cache without
// blocking.
type CacheWriter interface {
	PutCall(rec sessioncache.CallRecord)
	AppendUserText(callSID, text string)
	AppendAssistantText(callSID, text string)
}

// Observer receives lifecycle signals for metrics and the live-call
// registry. All methods must be cheap.
type Observer interface {
	CallStarted(callSID, streamSid, callerPhone string)
	CallEnded(callSID, reason string)
	StateChanged(callSID string, state State)
	FrameIn(bytes int)
	FrameOut(bytes int)
	Reconnect(attempt int)
	OutboundDropped()
}

// NopObserver satisfies Observer for tests and cache-less runs.
type NopObserver struct{}

func (NopObserver) CallStarted(string, string, string) {}
func (NopObserver) CallEnded(string, string)           {}
func (NopObserver) StateChanged(string, State)         {}
func (NopObserver) FrameIn(int)                        {}
func (NopObserver) FrameOut(int)                       {}
func (NopObserver) Reconnect(int)                      {}
func (NopObserver) OutboundDropped()                   {}

// Options carries the per-deployment knobs.
type Options struct {
	MaxCallDuration time.Duration
	HardCutDelay    time.Duration
}

type toolResult struct {
	callID string
	output json.RawMessage
}

// Bridge owns one call: the telephony socket, the model socket, the
// conversation state machine, the duration ceiling, and teardown.
type Bridge struct {
	telephony  TelephonyConn
	dialer     Dialer
	tools      ToolRunner
	cache      CacheWriter
	observer   Observer
	opts       Options
	log        *logrus.Entry

	// Mutable state, owned by the run loop.
	state          State
	callSID        string
	streamSid      string
	callerPhone    string
	startedAt      time.Time
	currentItemID  string
	aiAudioSince   time.Time
	audioAtPeer    bool
	responseCancel bool
	greetingSent   bool
	wrapUpSent     bool

	llm            LLMSession
	llmEvents      <-chan any
	reconnectsLeft int

	stats sessioncache.AudioStats

	telephonyIn  chan any
	telephonyOut chan any
	toolResults  chan toolResult

	durationTimer *time.Timer
	hardCutTimer  *time.Timer
	durationFired <-chan time.Time
	hardCutFired  <-chan time.Time

	ctx    context.Context
	cancel context.CancelFunc

	teardownOnce sync.Once
	endReason    string
}

// New builds a bridge for one accepted telephony socket.
func New(telephony TelephonyConn, dialer Dialer, tools ToolRunner, cache CacheWriter, observer Observer, opts Options, log *logrus.Entry) *Bridge {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if opts.MaxCallDuration <= 0 {
		opts.MaxCallDuration = 5 * time.Minute
	}
	if opts.HardCutDelay <= 0 {
		opts.HardCutDelay = hardCutDelay
	}
	return &Bridge{
		telephony:      telephony,
		dialer:         dialer,
		tools:          tools,
		cache:          cache,
		observer:       observer,
		opts:           opts,
		log:            log,
		state:          StateIdle,
		telephonyIn:    make(chan any, peerQueueSize),
		telephonyOut:   make(chan any, peerQueueSize),
		toolResults:    make(chan toolResult, 4),
		reconnectsLeft: reliability.MaxReconnectAttempts,
	}
}

// Run drives the call to completion. It returns after teardown.
func (b *Bridge) Run(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()

	readerDone := make(chan struct{})
	go b.telephonyReadLoop(readerDone)
	writerDone := make(chan struct{})
	go b.telephonyWriteLoop(writerDone)

	b.runLoop()

	b.teardown(b.endReason)
	<-readerDone
	<-writerDone
	return nil
}

func (b *Bridge) telephonyReadLoop(done chan<- struct{}) {
	defer close(done)
	defer close(b.telephonyIn)
	for {
		_, data, err := b.telephony.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.ParseTelephonyMessage(data)
		if err != nil {
			b.log.WithError(err).Warn("dropping telephony frame")
			continue
		}
		select {
		case b.telephonyIn <- msg:
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Bridge) telephonyWriteLoop(done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg := <-b.telephonyOut:
			if d, ok := b.telephony.(interface{ SetWriteDeadline(time.Time) error }); ok {
				_ = d.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
			}
			if err := b.telephony.WriteJSON(msg); err != nil {
				b.log.WithError(err).Warn("telephony write failed")
				b.cancel()
				return
			}
		}
	}
}

// enqueueTelephony never blocks the event loop; a saturated peer
// forfeits the frame.
func (b *Bridge) enqueueTelephony(msg any) {
	select {
	case b.telephonyOut <- msg:
	default:
		b.observer.OutboundDropped()
	}
}

func (b *Bridge) runLoop() {
	for {
		select {
		case <-b.ctx.Done():
			if b.endReason == "" {
				b.endReason = ReasonTelephonyClosed
			}
			return
		case msg, ok := <-b.telephonyIn:
			if !ok {
				if b.endReason == "" {
					b.endReason = ReasonTelephonyClosed
				}
				return
			}
			if done := b.handleTelephony(msg); done {
				return
			}
		case ev, ok := <-b.llmEvents:
			if !ok {
				if done := b.handleLLMClosed(); done {
					return
				}
				continue
			}
			b.handleLLMEvent(ev)
		case res := <-b.toolResults:
			b.handleToolResult(res)
		case <-b.durationFired:
			b.handleDurationCeiling()
		case <-b.hardCutFired:
			b.endReason = ReasonDurationCeiling
			return
		}
	}
}

func (b *Bridge) setState(next State) {
	if b.state == next {
		return
	}
	b.state = next
	if next != StateAISpeak {
		b.currentItemID = ""
	}
	b.observer.StateChanged(b.callSID, next)
}

func (b *Bridge) putCallRecord(status, reason string) {
	if b.cache == nil || b.callSID == "" {
		return
	}
	rec := sessioncache.CallRecord{
		CallSID:     b.callSID,
		StreamSid:   b.streamSid,
		CallerPhone: b.callerPhone,
		Status:      status,
		EndReason:   reason,
		StartedAt:   b.startedAt,
		AudioStats:  b.stats,
	}
	if status != "active" {
		now := time.Now().UTC()
		rec.EndedAt = &now
	}
	b.cache.PutCall(rec)
}

// teardown is idempotent: the first caller records the reason, stops
// the timers, and closes both sockets.
func (b *Bridge) teardown(reason string) {
	b.teardownOnce.Do(func() {
		if reason == "" {
			reason = ReasonTelephonyClosed
		}
		b.endReason = reason
		if b.durationTimer != nil {
			b.durationTimer.Stop()
		}
		if b.hardCutTimer != nil {
			b.hardCutTimer.Stop()
		}
		b.cancel()
		if b.llm != nil {
			_ = b.llm.Close()
		}
		_ = b.telephony.Close()
		b.putCallRecord("ended", reason)
		b.observer.CallEnded(b.callSID, reason)
		b.log.WithFields(logrus.Fields{
			"call_sid":   b.callSID,
			"reason":     reason,
			"in_frames":  b.stats.InFrames,
			"out_frames": b.stats.OutFrames,
		}).Info("call ended")
	})
}
