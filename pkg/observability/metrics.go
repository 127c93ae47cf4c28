package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Engine metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SpecErrorsTotal   *prometheus.CounterVec

	// Processing metrics
	RecordsTotal          *prometheus.CounterVec
	PropertyWarningsTotal prometheus.Counter
	BatchSize             prometheus.Histogram

	// Result metrics
	MetricGroups       *prometheus.GaugeVec
	FunnelStepSubjects *prometheus.GaugeVec
	FunnelConversion   *prometheus.GaugeVec

	// Job metrics
	JobRunsTotal     *prometheus.CounterVec
	LastRunTimestamp prometheus.Gauge

	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Engine metrics
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlens_operations_total",
				Help: "Total number of engine operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventlens_operation_duration_seconds",
				Help:    "Engine operation duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"operation"},
		),
		SpecErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlens_spec_errors_total",
				Help: "Total number of rejected metric and funnel specifications",
			},
			[]string{"operation"},
		),

		// Processing metrics
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlens_records_total",
				Help: "Total number of raw records processed, by outcome",
			},
			[]string{"outcome"},
		),
		PropertyWarningsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "eventlens_property_warnings_total",
				Help: "Total number of properties omitted in lenient mode",
			},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventlens_batch_size_events",
				Help:    "Number of events in canonical batches",
				Buckets: prometheus.ExponentialBuckets(10, 10, 7),
			},
		),

		// Result metrics
		MetricGroups: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eventlens_metric_groups",
				Help: "Number of groups in the latest result of a metric",
			},
			[]string{"metric"},
		),
		FunnelStepSubjects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eventlens_funnel_step_subjects",
				Help: "Subjects that reached a funnel step in the latest computation",
			},
			[]string{"funnel", "step"},
		),
		FunnelConversion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eventlens_funnel_conversion_ratio",
				Help: "Overall conversion of a funnel in the latest computation",
			},
			[]string{"funnel"},
		),

		// Job metrics
		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlens_job_runs_total",
				Help: "Total number of job runs",
			},
			[]string{"trigger", "status"},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventlens_last_run_timestamp_seconds",
				Help: "Unix time of the last successful job run",
			},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlens_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlens_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlens_cache_evictions_total",
				Help: "Total number of cache evictions",
			},
			[]string{"cache_type"},
		),

		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventlens_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventlens_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.SpecErrorsTotal,
		m.RecordsTotal,
		m.PropertyWarningsTotal,
		m.BatchSize,
		m.MetricGroups,
		m.FunnelStepSubjects,
		m.FunnelConversion,
		m.JobRunsTotal,
		m.LastRunTimestamp,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// ObserveOperation records the outcome and duration of an engine operation
func (m *Metrics) ObserveOperation(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveRecords records processing outcomes
func (m *Metrics) ObserveRecords(accepted, rejected, duplicates, warnings int) {
	m.RecordsTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.RecordsTotal.WithLabelValues("rejected").Add(float64(rejected))
	m.RecordsTotal.WithLabelValues("duplicate").Add(float64(duplicates))
	m.PropertyWarningsTotal.Add(float64(warnings))
	m.BatchSize.Observe(float64(accepted))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(rw, r)

			path := routePath(r)
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePath returns the matched route template so path variables do not
// explode label cardinality. Requests outside a router use the raw path.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
