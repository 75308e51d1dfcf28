package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveCalls     prometheus.Gauge
	CallEvents      *prometheus.CounterVec
	AudioFrames     *prometheus.CounterVec
	AudioBytes      *prometheus.CounterVec
	Reconnects      prometheus.Counter
	DroppedOutbound prometheus.Counter
	CacheDrops      prometheus.Counter
	ToolLatency     *prometheus.HistogramVec
	CallDuration    prometheus.Histogram

	// Window backs the /v1/perf/latency snapshot.
	Window *LatencyWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of live telephony calls.",
		}),
		CallEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call lifecycle events by type.",
		}, []string{"event"}),
		AudioFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_total",
			Help:      "Audio frames by direction.",
		}, []string{"direction"}),
		AudioBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Audio payload bytes by direction.",
		}, []string{"direction"}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reconnects_total",
			Help:      "Model socket reconnect attempts.",
		}),
		DroppedOutbound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_outbound_frames_total",
			Help:      "Outbound telephony frames dropped on a saturated socket.",
		}),
		CacheDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_cache_drops_total",
			Help:      "Session cache writes dropped on a full queue.",
		}),
		ToolLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_latency_ms",
			Help:      "Tool dispatch latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"tool"}),
		CallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Completed call duration in seconds.",
			Buckets:   []float64{15, 30, 60, 120, 180, 300, 450, 600},
		}),
		Window: NewLatencyWindow(5 * time.Minute),
	}
}

func (m *Metrics) CallStarted() {
	m.ActiveCalls.Inc()
	m.CallEvents.WithLabelValues("started").Inc()
}

func (m *Metrics) CallEnded(reason string, duration time.Duration) {
	m.ActiveCalls.Dec()
	m.CallEvents.WithLabelValues("ended:" + reason).Inc()
	m.CallDuration.Observe(duration.Seconds())
}

func (m *Metrics) FrameIn(bytes int) {
	m.AudioFrames.WithLabelValues("in").Inc()
	m.AudioBytes.WithLabelValues("in").Add(float64(bytes))
}

func (m *Metrics) FrameOut(bytes int) {
	m.AudioFrames.WithLabelValues("out").Inc()
	m.AudioBytes.WithLabelValues("out").Add(float64(bytes))
}

func (m *Metrics) ObserveToolCall(name string, d time.Duration) {
	m.ToolLatency.WithLabelValues(name).Observe(float64(d.Milliseconds()))
	m.Window.Observe("tool:"+name, float64(d.Milliseconds()))
}

func (m *Metrics) SnapshotLatency() LatencySnapshot {
	return m.Window.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
