package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "subcal_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	projectionTotal   *prometheus.CounterVec
	projectionLatency *prometheus.HistogramVec
	skippedTotal      *prometheus.CounterVec
	fallbackTotal     prometheus.Counter

	changeMessages *prometheus.CounterVec
	remindersSent  *prometheus.CounterVec
	exportsTotal   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers the collectors on the default registry. Observe calls made
// before Init are dropped.
func Init() {
	registerOnce.Do(func() {
		projectionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "projections_total",
				Help: "Month projections by result",
			},
			[]string{"result"},
		)
		projectionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "projection_latency_seconds",
				Help:    "Month projection latency in seconds, including storage reads",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		skippedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "skipped_subscriptions_total",
				Help: "Subscriptions left out of a projection by reason",
			},
			[]string{"reason"},
		)
		fallbackTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "fallback_cycles_total",
				Help: "Subscriptions projected with the monthly fallback cycle",
			},
		)
		changeMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "change_messages_total",
				Help: "Subscription change messages handled by result",
			},
			[]string{"result"},
		)
		remindersSent = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reminders_total",
				Help: "Payment reminders published by result",
			},
			[]string{"result"},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Calendar month exports by result",
			},
			[]string{"result"},
		)
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		prometheus.MustRegister(
			projectionTotal,
			projectionLatency,
			skippedTotal,
			fallbackTotal,
			changeMessages,
			remindersSent,
			exportsTotal,
			httpRequests,
			httpLatency,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveProjection records one month projection.
func ObserveProjection(err error, duration time.Duration) {
	r := result(err)
	if projectionTotal != nil {
		projectionTotal.WithLabelValues(r).Inc()
	}
	if projectionLatency != nil {
		projectionLatency.WithLabelValues(r).Observe(duration.Seconds())
	}
}

func IncSkipped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if skippedTotal != nil {
		skippedTotal.WithLabelValues(reason).Inc()
	}
}

func AddFallbackCycles(n int) {
	if fallbackTotal != nil && n > 0 {
		fallbackTotal.Add(float64(n))
	}
}

func IncChangeMessage(err error) {
	if changeMessages != nil {
		changeMessages.WithLabelValues(result(err)).Inc()
	}
}

func IncReminder(err error) {
	if remindersSent != nil {
		remindersSent.WithLabelValues(result(err)).Inc()
	}
}

func IncExport(err error) {
	if exportsTotal != nil {
		exportsTotal.WithLabelValues(result(err)).Inc()
	}
}

// ObserveHTTP records a served request. route should be the pattern, not the
// raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}
