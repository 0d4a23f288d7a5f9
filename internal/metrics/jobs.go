package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsStarted, jobPolls, jobsFinished)
}

var (
	jobsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_jobs_started_total",
			Help: "Long-running generation jobs submitted.",
		},
		[]string{"kind"},
	)

	jobPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_job_polls_total",
			Help: "Status checks issued, by result (running, done, error).",
		},
		[]string{"result"},
	)

	jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_jobs_finished_total",
			Help: "Terminal job outcomes (done, empty, failed, cancelled, limit).",
		},
		[]string{"status"},
	)
)

func IncJobStarted(kind string)    { jobsStarted.WithLabelValues(norm(kind)).Inc() }
func IncJobPoll(result string)     { jobPolls.WithLabelValues(norm(result)).Inc() }
func IncJobFinished(status string) { jobsFinished.WithLabelValues(norm(status)).Inc() }
