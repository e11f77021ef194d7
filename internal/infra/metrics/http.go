package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(httpRequestsTotal, rateLimitRejectedTotal, sseStreamsActive)
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		},
		[]string{"route", "method", "code"},
	)

	rateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limit_rejected_total",
			Help: "Requests rejected by the per-client rate limiter.",
		},
	)

	sseStreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "job_event_streams_active",
			Help: "Open job event streams.",
		},
	)
)

func IncHTTPRequest(route, method, code string) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, method, code).Inc()
}

func IncRateLimitRejected() {
	rateLimitRejectedTotal.Inc()
}

func StreamOpened() { sseStreamsActive.Inc() }
func StreamClosed() { sseStreamsActive.Dec() }
