package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	launchRedirectsTotal  *prometheus.CounterVec
	gradeSubmissionsTotal *prometheus.CounterVec
	gradeSyncRunsTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}, []string{"method", "route"})

		launchRedirectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lti_launch_redirects_total",
			Help: "LTI launches by front-end destination.",
		}, []string{"destination"})

		gradeSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_submissions_total",
			Help: "Scores posted to the platform gradebook by outcome.",
		}, []string{"outcome"})

		gradeSyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_sync_runs_total",
			Help: "Grade reconciliation runs by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, launchRedirectsTotal, gradeSubmissionsTotal, gradeSyncRunsTotal)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// LaunchRedirects exposes the launch destination counter.
func LaunchRedirects() *prometheus.CounterVec {
	RegisterMetrics()
	return launchRedirectsTotal
}

// GradeSubmissions exposes the score submission counter.
func GradeSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeSubmissionsTotal
}

// GradeSyncRuns exposes the reconciliation run counter.
func GradeSyncRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeSyncRunsTotal
}
