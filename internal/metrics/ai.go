package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(aiCallsTotal, aiCallsLatencyMs)
}

var (
	aiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_ai_calls_total",
			Help: "Generative API calls per operation/model and outcome.",
		},
		[]string{"operation", "model", "success"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studio_ai_calls_latency_ms",
			Help:    "Generative API call latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"operation", "model"},
	)
)

// ObserveAICall records one call. Use it deferred with a pointer to the named error result.
func ObserveAICall(operation, model string, started time.Time, err *error) {
	success := err == nil || *err == nil
	aiCallsTotal.WithLabelValues(norm(operation), norm(model), strconv.FormatBool(success)).Inc()
	aiCallsLatencyMs.WithLabelValues(norm(operation), norm(model)).
		Observe(float64(time.Since(started).Milliseconds()))
}
