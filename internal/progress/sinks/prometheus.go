package sinks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/content-capture/internal/progress"
)

// PrometheusSink exports per-stage capture metrics.
type PrometheusSink struct {
	stageDuration *prometheus.HistogramVec
	stageEvents   *prometheus.CounterVec
	inFlight      prometheus.Gauge

	tracker *captureTracker
}

// NewPrometheusSink registers the collectors against reg. Collectors that are already
// registered are reused, so several sinks may share one registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	stageDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "capture_stage_duration_seconds",
		Help:    "Time spent per capture lifecycle stage.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"stage"}))
	if err != nil {
		return nil, err
	}
	stageEvents, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_stage_events_total",
		Help: "Capture lifecycle events partitioned by stage and degradation.",
	}, []string{"stage", "degraded"}))
	if err != nil {
		return nil, err
	}
	inFlight, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capture_in_flight",
		Help: "Captures claimed but not yet completed or failed.",
	}))
	if err != nil {
		return nil, err
	}
	return &PrometheusSink{
		stageDuration: stageDuration,
		stageEvents:   stageEvents,
		inFlight:      inFlight,
		tracker:       newCaptureTracker(),
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register progress collector: %w", err)
	}
	return c, nil
}

// Consume updates the collectors from batch. It is safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		stage := string(evt.Stage)
		s.stageEvents.WithLabelValues(stage, strconv.FormatBool(evt.Degraded)).Inc()
		if evt.Dur > 0 {
			s.stageDuration.WithLabelValues(stage).Observe(evt.Dur.Seconds())
		}
		switch {
		case evt.Stage == progress.StageClaimed:
			if s.tracker.start(evt.CaptureID) {
				s.inFlight.Inc()
			}
		case evt.Stage.Terminal():
			if s.tracker.finish(evt.CaptureID) {
				s.inFlight.Dec()
			}
		}
	}
	return nil
}

// Close is a no-op; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

// captureTracker keeps the in-flight gauge from double counting redelivered claims.
type captureTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newCaptureTracker() *captureTracker {
	return &captureTracker{running: make(map[string]struct{})}
}

func (t *captureTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *captureTracker) finish(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
