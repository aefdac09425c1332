// Package metrics exports reconciliation counters and latencies to
// Prometheus.
package metrics

import (
	"context"

	"github.com/goliatone/go-confdiff"
	"github.com/goliatone/go-confdiff/pkg/activity"
	"github.com/goliatone/go-confdiff/pkg/guard"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "confdiff"

// Collector holds the metric vectors. It implements confdiff.Logger and
// guard.Logger, so it can be passed wherever those loggers are accepted.
type Collector struct {
	reconcileTotal     *prometheus.CounterVec
	reconcileDuration  *prometheus.HistogramVec
	identityCollisions *prometheus.CounterVec
	protectedRecords   *prometheus.CounterVec
	guardEvaluations   *prometheus.CounterVec
	guardDuration      *prometheus.HistogramVec
	activityEvents     *prometheus.CounterVec
}

var (
	_ confdiff.Logger = (*Collector)(nil)
	_ guard.Logger    = (*Collector)(nil)
)

// NewCollector creates the metric vectors and registers them with reg. A
// nil reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		reconcileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "total",
				Help:      "Total number of reconciliation calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		reconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "duration_seconds",
				Help:      "Duration of reconciliation calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
			},
			[]string{"operation"},
		),
		identityCollisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "identity_collisions_total",
				Help:      "Sibling records merged because they shared one identity",
			},
			[]string{"operation"},
		),
		protectedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "protected_records_total",
				Help:      "Records kept out of removal deltas by a removal filter",
			},
			[]string{"operation"},
		),
		guardEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "guard",
				Name:      "evaluations_total",
				Help:      "Removal guard rule evaluations by engine, rule and outcome",
			},
			[]string{"engine", "rule", "outcome"},
		),
		guardDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "guard",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of removal guard rule evaluations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8), // 10µs to ~160ms
			},
			[]string{"engine"},
		),
		activityEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "activity",
				Name:      "events_total",
				Help:      "Lifecycle events emitted by verb",
			},
			[]string{"verb"},
		),
	}
	if reg == nil {
		return c, nil
	}
	for _, collector := range c.collectors() {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.reconcileTotal,
		c.reconcileDuration,
		c.identityCollisions,
		c.protectedRecords,
		c.guardEvaluations,
		c.guardDuration,
		c.activityEvents,
	}
}

// LogReconcile implements confdiff.Logger.
func (c *Collector) LogReconcile(event confdiff.LogEvent) {
	result := "changed"
	switch {
	case event.Err != nil:
		result = "error"
	case event.Empty:
		result = "unchanged"
	}
	c.reconcileTotal.WithLabelValues(event.Operation, result).Inc()
	c.reconcileDuration.WithLabelValues(event.Operation).Observe(event.Duration.Seconds())
	if event.Collisions > 0 {
		c.identityCollisions.WithLabelValues(event.Operation).Add(float64(event.Collisions))
	}
	if event.Protected > 0 {
		c.protectedRecords.WithLabelValues(event.Operation).Add(float64(event.Protected))
	}
}

// LogEvaluation implements guard.Logger.
func (c *Collector) LogEvaluation(event guard.LogEvent) {
	outcome := "removed"
	switch {
	case event.Err != nil:
		outcome = "error"
	case event.Protected:
		outcome = "protected"
	}
	c.guardEvaluations.WithLabelValues(event.Engine, event.Rule, outcome).Inc()
	c.guardDuration.WithLabelValues(event.Engine).Observe(event.Duration.Seconds())
}

// Hook counts lifecycle events by verb.
func (c *Collector) Hook() activity.ActivityHook {
	return activity.HookFunc(func(_ context.Context, event activity.Event) error {
		c.activityEvents.WithLabelValues(event.Verb).Inc()
		return nil
	})
}
