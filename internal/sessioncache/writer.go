package sessioncache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	writerQueueSize = 256
	writeTimeout    = 2 * time.Second
)

// Writer drains cache writes off the audio path. Enqueue methods never
// block: when the queue is full the write is dropped and counted, the
// call goes on.
type Writer struct {
	cache     Cache
	ops       chan func(context.Context)
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
	onDrop    func()
	log       *logrus.Entry
}

func NewWriter(cache Cache, log *logrus.Entry, onDrop func()) *Writer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	w := &Writer{
		cache:  cache,
		ops:    make(chan func(context.Context), writerQueueSize),
		done:   make(chan struct{}),
		onDrop: onDrop,
		log:    log,
	}
	go w.drain()
	return w
}

func (w *Writer) drain() {
	for {
		select {
		case op := <-w.ops:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			op(ctx)
			cancel()
		case <-w.done:
			// Flush what is already queued, then stop.
			for {
				select {
				case op := <-w.ops:
					ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
					op(ctx)
					cancel()
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) enqueue(op func(context.Context)) {
	select {
	case w.ops <- op:
	default:
		w.dropped.Add(1)
		if w.onDrop != nil {
			w.onDrop()
		}
	}
}

// Dropped reports how many writes were discarded on queue overflow.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

func (w *Writer) PutCall(rec CallRecord) {
	w.enqueue(func(ctx context.Context) {
		if err := w.cache.PutCall(ctx, rec); err != nil {
			w.log.WithError(err).WithField("call_sid", rec.CallSID).Warn("cache call write failed")
		}
	})
}

func (w *Writer) appendEntry(callSID string, entry TranscriptEntry) {
	w.enqueue(func(ctx context.Context) {
		if err := w.cache.AppendTranscript(ctx, callSID, entry); err != nil {
			w.log.WithError(err).WithField("call_sid", callSID).Warn("cache transcript write failed")
		}
	})
}

func (w *Writer) AppendUserText(callSID, text string) {
	w.appendEntry(callSID, TranscriptEntry{Instant: time.Now().UTC(), Role: RoleUser, Text: text})
}

func (w *Writer) AppendAssistantText(callSID, text string) {
	w.appendEntry(callSID, TranscriptEntry{Instant: time.Now().UTC(), Role: RoleAssistant, Text: text})
}

func (w *Writer) AppendToolCall(callSID, name string, arguments json.RawMessage) {
	w.appendEntry(callSID, TranscriptEntry{
		Instant:   time.Now().UTC(),
		Role:      RoleToolCall,
		ToolName:  name,
		Arguments: arguments,
	})
}

func (w *Writer) AppendToolResult(callSID, name string, result json.RawMessage) {
	w.appendEntry(callSID, TranscriptEntry{
		Instant:  time.Now().UTC(),
		Role:     RoleToolResult,
		ToolName: name,
		Result:   result,
	})
}

// Close stops the drain goroutine after flushing queued writes.
func (w *Writer) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}
