package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(liveSessionsActive, liveChunksSent, liveChunksDropped, liveTurns)
}

var (
	liveSessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "studio_live_sessions_active",
			Help: "Live audio sessions currently open.",
		},
		[]string{"mode"},
	)

	liveChunksSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_live_chunks_sent_total",
			Help: "Capture buffers sent upstream.",
		},
		[]string{"mode"},
	)

	liveChunksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_live_chunks_dropped_total",
			Help: "Audio chunks dropped, by reason (backpressure, decode, send).",
		},
		[]string{"mode", "reason"},
	)

	liveTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_live_turns_total",
			Help: "Completed transcript turns.",
		},
		[]string{"mode"},
	)
)

func LiveSessionOpened(mode string) { liveSessionsActive.WithLabelValues(norm(mode)).Inc() }
func LiveSessionClosed(mode string) { liveSessionsActive.WithLabelValues(norm(mode)).Dec() }
func IncLiveChunkSent(mode string)  { liveChunksSent.WithLabelValues(norm(mode)).Inc() }
func IncLiveTurn(mode string)       { liveTurns.WithLabelValues(norm(mode)).Inc() }

func IncLiveChunkDropped(mode, reason string) {
	liveChunksDropped.WithLabelValues(norm(mode), norm(reason)).Inc()
}
