// Package observability exports funnel and HTTP metrics to Prometheus.
//
// Every method is nil-safe, so components take a *Metrics and callers
// that do not care pass nil.
package observability

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "divinequiz"

// Metrics holds the registered collectors.
type Metrics struct {
	stepEntries    *prometheus.CounterVec
	completions    prometheus.Counter
	abandonments   *prometheus.CounterVec
	diagnoses      *prometheus.CounterVec
	conversions    *prometheus.CounterVec
	activeSessions prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg (the default registerer when
// nil). Registering twice on one registry reuses the existing collectors.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}
	var err error
	if m.stepEntries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "step_entries_total",
		Help:      "Funnel step entries by step.",
	}, []string{"step"})); err != nil {
		return nil, err
	}
	if m.completions, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "funnel_completions_total",
		Help:      "Sessions that reached the offer step.",
	})); err != nil {
		return nil, err
	}
	if m.abandonments, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "abandonments_total",
		Help:      "Sessions abandoned, by the step they were on.",
	}, []string{"step"})); err != nil {
		return nil, err
	}
	if m.diagnoses, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diagnoses_total",
		Help:      "Diagnoses assigned, by category.",
	}, []string{"diagnosis"})); err != nil {
		return nil, err
	}
	if m.conversions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversions_total",
		Help:      "Conversions reported from the offer page, by type.",
	}, []string{"type"})); err != nil {
		return nil, err
	}
	if m.activeSessions, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Funnel sessions currently held in memory.",
	})); err != nil {
		return nil, err
	}
	if m.httpRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}
	if m.httpDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, returning the already-registered collector of
// the same type when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("registering collector: %w", err)
	}
	return c, nil
}

// StepEntered counts an entry into step.
func (m *Metrics) StepEntered(step string) {
	if m == nil {
		return
	}
	m.stepEntries.WithLabelValues(step).Inc()
}

// FunnelCompleted counts a session reaching the offer.
func (m *Metrics) FunnelCompleted() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

// Abandoned counts a session abandoned on step.
func (m *Metrics) Abandoned(step string) {
	if m == nil {
		return
	}
	m.abandonments.WithLabelValues(step).Inc()
}

// Diagnosed counts an assigned diagnosis.
func (m *Metrics) Diagnosed(diagnosis string) {
	if m == nil {
		return
	}
	m.diagnoses.WithLabelValues(diagnosis).Inc()
}

// Converted counts a conversion of the given type.
func (m *Metrics) Converted(kind string) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(kind).Inc()
}

// SessionsActive sets the live session gauge.
func (m *Metrics) SessionsActive(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, fmt.Sprint(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
