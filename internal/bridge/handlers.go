package bridge

import (
	"encoding/base64"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avilev/frontdesk/internal/audio"
	"github.com/avilev/frontdesk/internal/protocol"
	"github.com/avilev/frontdesk/internal/reliability"
)

// handleTelephony processes one inbound frame. It returns true when
// the call is over.
func (b *Bridge) handleTelephony(msg any) bool {
	switch frame := msg.(type) {
	case protocol.ConnectedFrame:
		b.log.Debug("media stream connected")
	case protocol.StartFrame:
		b.handleStart(frame)
	case protocol.MediaFrame:
		b.handleInboundMedia(frame)
	case protocol.MarkFrame:
		b.log.WithField("mark", frame.Mark.Name).Debug("mark acknowledged")
	case protocol.StopFrame:
		b.endReason = ReasonTelephonyStopped
		return true
	}
	return false
}

func (b *Bridge) handleStart(frame protocol.StartFrame) {
	b.callSID = frame.Start.CallSid
	b.streamSid = frame.Start.StreamSid
	b.callerPhone = frame.CallerPhone()
	b.startedAt = time.Now().UTC()

	b.log = b.log.WithFields(logrus.Fields{
		"call_sid":   b.callSID,
		"stream_sid": b.streamSid,
	})
	b.log.Info("call started")
	b.observer.CallStarted(b.callSID, b.streamSid, b.callerPhone)
	b.putCallRecord("active", "")

	b.durationTimer = time.NewTimer(b.opts.MaxCallDuration)
	b.durationFired = b.durationTimer.C

	if err := b.connectLLM(); err != nil {
		b.log.WithError(err).Error("model connect failed")
		b.endReason = ReasonFatalError
		b.cancel()
	}
}

func (b *Bridge) connectLLM() error {
	session, events, err := b.dialer.Connect(b.ctx)
	if err != nil {
		return err
	}
	b.llm = session
	b.llmEvents = events
	if err := session.UpdateSession(b.dialer.SessionConfig()); err != nil {
		return err
	}
	return nil
}

func (b *Bridge) handleInboundMedia(frame protocol.MediaFrame) {
	raw, err := base64.StdEncoding.DecodeString(frame.Media.Payload)
	if err != nil {
		b.log.WithError(err).Warn("dropping undecodable media payload")
		return
	}
	b.stats.InFrames++
	b.stats.InBytes += int64(len(raw))
	b.observer.FrameIn(len(raw))
	if b.stats.InFrames%statsPutInterval == 0 {
		b.putCallRecord("active", "")
	}
	if b.llm == nil {
		return
	}
	pcm := audio.MulawToPCM24(raw)
	if err := b.llm.AppendAudio(base64.StdEncoding.EncodeToString(pcm)); err != nil {
		b.log.WithError(err).Warn("audio append failed")
	}
}

func (b *Bridge) handleLLMEvent(ev any) {
	switch event := ev.(type) {
	case protocol.SessionCreatedEvent:
		b.reconnectsLeft = reliability.MaxReconnectAttempts
		b.log.WithField("session_id", event.Session.ID).Info("model session created")
	case protocol.SessionUpdatedEvent:
		if !b.greetingSent {
			b.greetingSent = true
			if err := b.llm.CreateResponse(); err != nil {
				b.log.WithError(err).Warn("greeting request failed")
			}
		}
	case protocol.SpeechStartedEvent:
		b.handleSpeechStarted()
	case protocol.SpeechStoppedEvent:
		if b.state == StateUserSpeak {
			b.setState(StateIdle)
		}
	case protocol.AudioDeltaEvent:
		b.handleAudioDelta(event)
	case protocol.AudioDoneEvent:
		if b.state == StateAISpeak {
			b.setState(StateIdle)
		}
	case protocol.AudioTranscriptDoneEvent:
		if b.cache != nil && event.Transcript != "" {
			b.cache.AppendAssistantText(b.callSID, event.Transcript)
		}
	case protocol.InputTranscriptCompletedEvent:
		if b.cache != nil && event.Transcript != "" {
			b.cache.AppendUserText(b.callSID, event.Transcript)
		}
	case protocol.FunctionArgsDoneEvent:
		b.handleFunctionCall(event)
	case protocol.ResponseDoneEvent:
		b.responseCancel = false
	case protocol.RealtimeErrorEvent:
		b.log.WithFields(logrus.Fields{
			"code":      event.Error.Code,
			"message":   event.Error.Message,
			"retryable": reliability.IsRetryableRealtimeError(event.Error.Code),
		}).Warn("model error event")
	case protocol.RateLimitsUpdatedEvent:
		b.log.Debug("rate limits updated")
	}
}

// handleSpeechStarted covers both the plain turn transition and
// barge-in over in-flight assistant audio.
func (b *Bridge) handleSpeechStarted() {
	switch b.state {
	case StateAISpeak:
		elapsed := time.Since(b.aiAudioSince).Milliseconds()
		b.enqueueTelephony(protocol.NewClear(b.streamSid))
		b.audioAtPeer = false
		if err := b.llm.CancelResponse(); err != nil {
			b.log.WithError(err).Warn("response cancel failed")
		}
		b.responseCancel = true
		if b.currentItemID != "" {
			if err := b.llm.TruncateItem(b.currentItemID, elapsed); err != nil {
				b.log.WithError(err).Warn("item truncate failed")
			}
		}
		b.log.WithField("audio_end_ms", elapsed).Info("barge-in")
		b.setState(StateUserSpeak)
	case StateIdle:
		// Audio already handed to the peer may still be playing out.
		if b.audioAtPeer && !b.responseCancel {
			b.enqueueTelephony(protocol.NewClear(b.streamSid))
			b.audioAtPeer = false
		}
		b.setState(StateUserSpeak)
	}
}

func (b *Bridge) handleAudioDelta(event protocol.AudioDeltaEvent) {
	if b.state != StateAISpeak {
		b.aiAudioSince = time.Now()
		b.responseCancel = false
		b.setState(StateAISpeak)
	}
	b.currentItemID = event.ItemID

	pcm, err := base64.StdEncoding.DecodeString(event.Delta)
	if err != nil {
		b.log.WithError(err).Warn("dropping undecodable audio delta")
		return
	}
	mulaw := audio.PCM24ToMulaw(pcm)
	b.stats.OutFrames++
	b.stats.OutBytes += int64(len(mulaw))
	b.observer.FrameOut(len(mulaw))
	b.audioAtPeer = true
	b.enqueueTelephony(protocol.NewOutboundMedia(b.streamSid, base64.StdEncoding.EncodeToString(mulaw)))
}

// handleFunctionCall runs the tool off the audio path and feeds the
// result back through the run loop.
func (b *Bridge) handleFunctionCall(event protocol.FunctionArgsDoneEvent) {
	b.setState(StateToolRunning)
	callSID := b.callSID
	go func() {
		output := b.tools.Dispatch(b.ctx, callSID, event.Name, event.Arguments)
		select {
		case b.toolResults <- toolResult{callID: event.CallID, output: output}:
		case <-b.ctx.Done():
		}
	}()
}

func (b *Bridge) handleToolResult(res toolResult) {
	if b.llm != nil {
		if err := b.llm.SendFunctionOutput(res.callID, string(res.output)); err != nil {
			b.log.WithError(err).Warn("function output send failed")
		}
		if err := b.llm.CreateResponse(); err != nil {
			b.log.WithError(err).Warn("post-tool response request failed")
		}
	}
	if b.state == StateToolRunning {
		b.setState(StateIdle)
	}
}

// handleLLMClosed runs the reconnect ladder: linear backoff, counter
// reset only by a fresh session.created.
func (b *Bridge) handleLLMClosed() bool {
	b.llm = nil
	b.llmEvents = nil
	if b.callSID == "" {
		b.endReason = ReasonLLMClosed
		return true
	}
	for b.reconnectsLeft > 0 {
		attempt := reliability.MaxReconnectAttempts - b.reconnectsLeft + 1
		b.reconnectsLeft--
		b.observer.Reconnect(attempt)
		wait := reliability.ReconnectBackoff(attempt, reconnectBase)
		b.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("model socket closed, reconnecting")

		select {
		case <-time.After(wait):
		case <-b.ctx.Done():
			b.endReason = ReasonTelephonyClosed
			return true
		}
		if err := b.connectLLM(); err != nil {
			b.log.WithError(err).Warn("reconnect failed")
			continue
		}
		return false
	}
	b.log.Error("model reconnects exhausted")
	b.endReason = ReasonReconnectExhausted
	return true
}

// handleDurationCeiling nudges the model to wrap up and arms the hard
// cut.
func (b *Bridge) handleDurationCeiling() {
	if b.wrapUpSent {
		return
	}
	b.wrapUpSent = true
	b.log.Info("duration ceiling reached, wrapping up")
	if b.llm != nil {
		if err := b.llm.SendUserText(wrapUpPrompt); err != nil {
			b.log.WithError(err).Warn("wrap-up inject failed")
		}
		if err := b.llm.CreateResponse(); err != nil {
			b.log.WithError(err).Warn("wrap-up response request failed")
		}
	}
	b.hardCutTimer = time.NewTimer(b.opts.HardCutDelay)
	b.hardCutFired = b.hardCutTimer.C
}
