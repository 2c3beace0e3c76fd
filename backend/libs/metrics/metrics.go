package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "gulfsolar_"

// Result labels shared by callers.
const (
	ResultSuccess      = "success"
	ResultError        = "error"
	ResultEstimated    = "estimated"
	ResultNotEstimable = "not_estimable"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	estimatesTotal     *prometheus.CounterVec
	leadsCaptured      prometheus.Counter
	leadDeliveries     *prometheus.CounterVec
	leadQueueDropped   prometheus.Counter
	settingsCacheTotal *prometheus.CounterVec
)

// Init registers collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		)
		estimatesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "estimates_total",
				Help: "Estimate computations by result",
			},
			[]string{"result"},
		)
		leadsCaptured = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "leads_captured_total",
				Help: "Leads accepted for delivery",
			},
		)
		leadDeliveries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "lead_deliveries_total",
				Help: "Lead deliveries by sink and result",
			},
			[]string{"sink", "result"},
		)
		leadQueueDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "lead_queue_dropped_total",
				Help: "Leads that could not be queued for delivery",
			},
		)
		settingsCacheTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settings_cache_total",
				Help: "Settings cache lookups by outcome",
			},
			[]string{"outcome"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			estimatesTotal,
			leadsCaptured,
			leadDeliveries,
			leadQueueDropped,
			settingsCacheTotal,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one served request.
func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if httpRequests == nil {
		return
	}
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveEstimate records an estimate outcome.
func ObserveEstimate(result string) {
	if estimatesTotal == nil {
		return
	}
	estimatesTotal.WithLabelValues(result).Inc()
}

// ObserveLeadCaptured counts an accepted lead.
func ObserveLeadCaptured() {
	if leadsCaptured == nil {
		return
	}
	leadsCaptured.Inc()
}

// ObserveLeadDelivery records one sink delivery attempt.
func ObserveLeadDelivery(sink, result string) {
	if leadDeliveries == nil {
		return
	}
	leadDeliveries.WithLabelValues(sink, result).Inc()
}

// ObserveLeadDropped counts a lead rejected by a full delivery queue.
func ObserveLeadDropped() {
	if leadQueueDropped == nil {
		return
	}
	leadQueueDropped.Inc()
}

// ObserveSettingsCache records hit, miss or error for the settings cache.
func ObserveSettingsCache(outcome string) {
	if settingsCacheTotal == nil {
		return
	}
	settingsCacheTotal.WithLabelValues(outcome).Inc()
}
