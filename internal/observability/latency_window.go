package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Per-stage sample cap inside the window, so a hot stage cannot grow
// the snapshot cost without bound.
const maxStageSamples = 1024

type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	MaxMS       float64 `json:"max_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type LatencySnapshot struct {
	GeneratedAt   time.Time    `json:"generated_at"`
	WindowSeconds float64      `json:"window_seconds"`
	Stages        []StageStats `json:"stages"`
	Indicators    []Indicator  `json:"indicators,omitempty"`
}

type timedSample struct {
	at time.Time
	ms float64
}

// LatencyWindow keeps the samples observed during the trailing span,
// per stage, for the /v1/perf/latency endpoint. Indicators count
// events that have no duration, like barge-ins.
type LatencyWindow struct {
	mu      sync.Mutex
	span    time.Duration
	clock   func() time.Time
	samples map[string][]timedSample
	events  map[string]int
}

func NewLatencyWindow(span time.Duration) *LatencyWindow {
	if span <= 0 {
		span = 5 * time.Minute
	}
	return &LatencyWindow{
		span:    span,
		clock:   time.Now,
		samples: make(map[string][]timedSample),
		events:  make(map[string]int),
	}
}

func (w *LatencyWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 || math.IsNaN(ms) {
		return
	}
	now := w.clock()
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := discardBefore(w.samples[stage], now.Add(-w.span))
	kept = append(kept, timedSample{at: now, ms: ms})
	if len(kept) > maxStageSamples {
		kept = kept[len(kept)-maxStageSamples:]
	}
	w.samples[stage] = kept
}

func (w *LatencyWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	w.events[name]++
	w.mu.Unlock()
}

// Snapshot prunes expired samples as a side effect, so idle stages
// age out even when nothing new is observed.
func (w *LatencyWindow) Snapshot() LatencySnapshot {
	now := w.clock()
	cutoff := now.Add(-w.span)

	w.mu.Lock()
	defer w.mu.Unlock()

	snap := LatencySnapshot{
		GeneratedAt:   now.UTC(),
		WindowSeconds: w.span.Seconds(),
	}
	for stage, samples := range w.samples {
		kept := discardBefore(samples, cutoff)
		w.samples[stage] = kept
		if len(kept) == 0 {
			continue
		}
		snap.Stages = append(snap.Stages, summarizeStage(stage, kept))
	}
	sort.Slice(snap.Stages, func(i, j int) bool {
		return snap.Stages[i].Stage < snap.Stages[j].Stage
	})

	for name, count := range w.events {
		if count > 0 {
			snap.Indicators = append(snap.Indicators, Indicator{Name: name, Count: count})
		}
	}
	sort.Slice(snap.Indicators, func(i, j int) bool {
		return snap.Indicators[i].Name < snap.Indicators[j].Name
	})
	return snap
}

// discardBefore drops samples older than the cutoff. Samples arrive in
// time order, so the survivors are a single shift.
func discardBefore(samples []timedSample, cutoff time.Time) []timedSample {
	expired := 0
	for expired < len(samples) && samples[expired].at.Before(cutoff) {
		expired++
	}
	if expired == 0 {
		return samples
	}
	n := copy(samples, samples[expired:])
	return samples[:n]
}

func summarizeStage(stage string, samples []timedSample) StageStats {
	ordered := make([]float64, len(samples))
	var sum, max float64
	for i, s := range samples {
		ordered[i] = s.ms
		sum += s.ms
		if s.ms > max {
			max = s.ms
		}
	}
	sort.Float64s(ordered)

	return StageStats{
		Stage:       stage,
		Samples:     len(samples),
		LastMS:      roundMS(samples[len(samples)-1].ms),
		AvgMS:       roundMS(sum / float64(len(samples))),
		MaxMS:       roundMS(max),
		P50MS:       roundMS(nearestRank(ordered, 50)),
		P95MS:       roundMS(nearestRank(ordered, 95)),
		TargetP95MS: stageTargets[stage],
	}
}

// nearestRank picks the pct-th percentile of an ascending series as
// the ceil(pct*n/100)-th value, never interpolating between samples.
func nearestRank(ordered []float64, pct int) float64 {
	if len(ordered) == 0 {
		return 0
	}
	i := (pct*len(ordered) + 99) / 100
	if i < 1 {
		i = 1
	}
	if i > len(ordered) {
		i = len(ordered)
	}
	return ordered[i-1]
}

func roundMS(v float64) float64 {
	return math.Round(v*10) / 10
}

var stageTargets = map[string]float64{
	"tool:list_available_slots": 250,
	"tool:create_appointment":   500,
}
