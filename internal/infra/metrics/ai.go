package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiPromptTokens,
		aiCallsLatencyMs,
	)
}

var (
	aiPromptTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_prompt_tokens_estimated_total",
			Help: "Estimated prompt tokens sent per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		},
		[]string{"provider", "model", "success"},
	)
)

func ObserveAICall(provider, model string, promptTokens int, took time.Duration, success bool) {
	if promptTokens > 0 {
		aiPromptTokens.WithLabelValues(norm(provider), norm(model)).Add(float64(promptTokens))
	}
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(took.Milliseconds()))
}
