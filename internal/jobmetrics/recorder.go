package jobmetrics

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileRun records one manual reconciliation run for pushing.
type ReconcileRun struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	lastSuccess prometheus.Gauge
	duration    prometheus.Gauge
}

func NewReconcileRun() *ReconcileRun {
	r := &ReconcileRun{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railbook_manual_reconciliations_total",
			Help: "Manual reconciliation runs by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railbook_manual_reconciliation_last_success_timestamp_seconds",
			Help: "Unix time of the last successful manual reconciliation.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railbook_manual_reconciliation_duration_seconds",
			Help: "Wall time of the last manual reconciliation run.",
		}),
	}
	r.registry.MustRegister(r.runs, r.lastSuccess, r.duration)
	return r
}

func (r *ReconcileRun) Observe(strategy, outcome string, started, finished time.Time) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(normalizeLabel(strategy), normalizeLabel(outcome)).Inc()
	r.duration.Set(finished.Sub(started).Seconds())
	if outcome != "failed" {
		r.lastSuccess.Set(float64(finished.Unix()))
	}
}

func (r *ReconcileRun) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Push is a no-op without a pusher.
func (r *ReconcileRun) Push(ctx context.Context, pusher Pusher) error {
	if r == nil || pusher == nil {
		return nil
	}
	return pusher.Push(ctx, r.registry)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
