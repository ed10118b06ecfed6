package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// APIRequestsTotal tracks outbound API calls made by the suite clients.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_api_requests_total",
			Help: "Total number of outbound API requests (by client, method, and status).",
		},
		[]string{"client", "method", "status"},
	)

	// APIRequestDuration measures the duration of outbound API calls.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qa_api_request_duration_seconds",
			Help:    "Duration of outbound API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"client", "method"},
	)

	// LoginsTotal counts session logins by result.
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_session_logins_total",
			Help: "Number of session logins performed (by client and result).",
		},
		[]string{"client", "result"}, // result = "ok" | "error"
	)

	// StepsTotal counts scenario steps by suite and outcome.
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_steps_total",
			Help: "Number of scenario steps executed (by suite and status).",
		},
		[]string{"suite", "status"},
	)

	// RunDuration measures whole suite runs.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qa_run_duration_seconds",
			Help:    "Duration of suite runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"suite", "status"},
	)

	// PublishErrors tracks result sink failures.
	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_publish_errors_total",
			Help: "Number of result publish failures by sink.",
		},
		[]string{"sink"},
	)
)

// IncAPIRequest increments the outbound request counter.
func IncAPIRequest(client, method string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequestsTotal.WithLabelValues(client, method, label).Inc()
}

// IncLogin records a login attempt.
func IncLogin(client string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	LoginsTotal.WithLabelValues(client, result).Inc()
}

// IncStep records a finished step.
func IncStep(suite, status string) {
	StepsTotal.WithLabelValues(suite, status).Inc()
}

// IncPublishError records a failed sink publish.
func IncPublishError(sink string) {
	PublishErrors.WithLabelValues(sink).Inc()
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}

// Push sends the default registry to a Pushgateway under the given job name.
// Batch runs have no scrape window, so the CLI pushes once on exit.
func Push(url, job string) error {
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).Push()
}
