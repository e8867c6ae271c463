package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	VLMRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vlm_requests_total",
			Help: "Total number of VLM content-check HTTP attempts, retries included",
		},
	)
	VLMRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vlm_request_duration_seconds",
			Help:    "VLM content-check attempt duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	JobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_jobs_submitted_total",
			Help: "Total number of validation jobs accepted into the queue",
		},
	)
	JobsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_jobs_completed_total",
			Help: "Total number of validation jobs that produced a result",
		},
	)
	JobsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_jobs_failed_total",
			Help: "Total number of validation jobs that failed",
		},
	)
	JobsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_jobs_rejected_total",
			Help: "Total number of submissions rejected before enqueue",
		},
		[]string{"reason"},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "validation_queue_depth",
			Help: "Number of jobs waiting in the queue",
		},
	)
	JobsInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "validation_jobs_in_progress",
			Help: "Number of jobs currently being processed",
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(VLMRequestsTotal)
	prometheus.MustRegister(VLMRequestDuration)
	prometheus.MustRegister(JobsSubmittedTotal)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobsRejectedTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(JobsInProgress)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

func SubmitJob() {
	JobsSubmittedTotal.Inc()
	QueueDepth.Inc()
}

func StartProcessingJob() {
	QueueDepth.Dec()
	JobsInProgress.Inc()
}

func CompleteJob() {
	JobsInProgress.Dec()
	JobsCompletedTotal.Inc()
}

func FailJob() {
	JobsInProgress.Dec()
	JobsFailedTotal.Inc()
}

func RejectSubmission(reason string) {
	JobsRejectedTotal.WithLabelValues(reason).Inc()
}
