package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "studio_build_info",
		Help: "A constant metric labelled with the running version.",
	},
	[]string{"version"},
)

// SetBuildInfo publishes the running version
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(norm(version)).Set(1)
}
