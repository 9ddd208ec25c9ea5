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
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageErrorsTotal       *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Account metrics
	OTPIssuedTotal        *prometheus.CounterVec
	OTPVerificationsTotal *prometheus.CounterVec
	LoginsTotal           *prometheus.CounterVec
	AuthzDecisionsTotal   *prometheus.CounterVec
	RateLimitedTotal      *prometheus.CounterVec

	// Upload metrics
	UploadsTotal    *prometheus.CounterVec
	UploadSizeBytes prometheus.Histogram
	OTPPurgedTotal  prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobportal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobportal_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobportal_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobportal_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation", "backend"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobportal_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobportal_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		OTPIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_otp_issued_total",
				Help: "Total number of one-time codes issued",
			},
			[]string{"action", "delivered"},
		),
		OTPVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_otp_verifications_total",
				Help: "Total number of one-time code verification attempts",
			},
			[]string{"action", "outcome"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_logins_total",
				Help: "Total number of session tokens requested",
			},
			[]string{"method", "outcome"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"outcome"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_rate_limited_total",
				Help: "Total number of requests rejected by a rate limiter",
			},
			[]string{"route"},
		),

		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobportal_uploads_total",
				Help: "Total number of uploaded files",
			},
			[]string{"status"},
		),
		UploadSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobportal_upload_size_bytes",
				Help:    "Uploaded file size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		OTPPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jobportal_otp_purged_total",
				Help: "Total number of expired one-time codes removed by the purge job",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.StorageErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.OTPIssuedTotal,
		m.OTPVerificationsTotal,
		m.LoginsTotal,
		m.AuthzDecisionsTotal,
		m.RateLimitedTotal,
		m.UploadsTotal,
		m.UploadSizeBytes,
		m.OTPPurgedTotal,
	)

	return m
}

// The recorders below are safe to call on a nil *Metrics so that services
// can be constructed without a registry in tests.

// RecordOTPIssued counts an issued code
func (m *Metrics) RecordOTPIssued(action string, delivered bool) {
	if m == nil {
		return
	}
	m.OTPIssuedTotal.WithLabelValues(action, strconv.FormatBool(delivered)).Inc()
}

// RecordOTPVerification counts a verification attempt by outcome
func (m *Metrics) RecordOTPVerification(action, outcome string) {
	if m == nil {
		return
	}
	m.OTPVerificationsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordLogin counts a session request by method (otp, password, google)
func (m *Metrics) RecordLogin(method string, err error) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(method, outcomeOf(err)).Inc()
}

// RecordAuthzDecision counts an authorization decision
func (m *Metrics) RecordAuthzDecision(allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.AuthzDecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimited counts a request rejected by a limiter
func (m *Metrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}

// RecordCache counts a cache lookup
func (m *Metrics) RecordCache(cacheType string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// RecordUpload counts an uploaded file and its size
func (m *Metrics) RecordUpload(size int64, err error) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(outcomeOf(err)).Inc()
	if err == nil {
		m.UploadSizeBytes.Observe(float64(size))
	}
}

// RecordStorageOperation records the latency and result of a storage call
func (m *Metrics) RecordStorageOperation(operation, backend string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StorageOperationsTotal.WithLabelValues(operation, backend, outcomeOf(err)).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
	if err != nil {
		m.StorageErrorsTotal.WithLabelValues(operation, backend).Inc()
	}
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the mux path template so that ids do not explode cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
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

			route := routeLabel(r)
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
			}

			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
