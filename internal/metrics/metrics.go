// Package metrics exposes Prometheus instruments for the game service. Every
// method is safe on a nil *Metrics so components can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livequiz"

// Metrics holds the Prometheus collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	Transitions       *prometheus.CounterVec
	Answers           *prometheus.CounterVec
	Joins             *prometheus.CounterVec
	PublishFailures   prometheus.Counter
	ActiveSubscribers prometheus.Gauge
	GamesReaped       prometheus.Counter
	LeaderboardBuild  prometheus.Histogram
	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "game_transitions_total",
				Help:      "Applied game state transitions",
			},
			[]string{"transition"},
		),
		Answers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "answers_total",
				Help:      "Answer submissions by outcome",
			},
			[]string{"outcome"}, // correct, wrong, duplicate, rejected
		),
		Joins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "player_joins_total",
				Help:      "Join attempts by result",
			},
			[]string{"result"},
		),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be handed to the broker",
		}),
		ActiveSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Open game event subscriptions",
		}),
		GamesReaped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_reaped_total",
			Help:      "Sessions removed by the reaper",
		}),
		LeaderboardBuild: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "leaderboard_build_seconds",
			Help:      "Time to aggregate a leaderboard",
			Buckets:   prometheus.DefBuckets,
		}),
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveTransition(name string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(name).Inc()
}

func (m *Metrics) ObserveAnswer(outcome string) {
	if m == nil {
		return
	}
	m.Answers.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveJoin(result string) {
	if m == nil {
		return
	}
	m.Joins.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.ActiveSubscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.ActiveSubscribers.Dec()
}

func (m *Metrics) ObserveReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.GamesReaped.Add(float64(n))
}

func (m *Metrics) ObserveLeaderboard(d time.Duration) {
	if m == nil {
		return
	}
	m.LeaderboardBuild.Observe(d.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
