// Package metrics provides Prometheus metrics for the file store server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filestore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upload / dedup metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_uploads_total",
			Help: "Total number of uploads by lifecycle and outcome",
		},
		[]string{"lifecycle", "outcome"},
	)

	uploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filestore_uploaded_bytes_total",
			Help: "Total bytes received by uploads",
		},
	)

	downloadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filestore_downloaded_bytes_total",
			Help: "Total bytes served by downloads",
		},
	)

	// GC metrics
	gcRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_gc_runs_total",
			Help: "Total number of GC passes",
		},
		[]string{"status"},
	)

	gcRowsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filestore_gc_rows_deleted_total",
			Help: "Tombstoned mapping rows removed by GC",
		},
	)

	gcBlobsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filestore_gc_blobs_deleted_total",
			Help: "Physical blobs deleted by GC",
		},
	)

	gcBlobsRetained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filestore_gc_blobs_retained_total",
			Help: "Physical blobs kept by GC because live rows still reference them",
		},
	)

	gcDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filestore_gc_duration_seconds",
			Help:    "Duration of GC passes",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Backing store metrics
	backingOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_backing_operations_total",
			Help: "Total backing store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	backingOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filestore_backing_operation_duration_seconds",
			Help:    "Backing store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload records a finished upload. outcome is "stored",
// "deduplicated" or "error".
func RecordUpload(lifecycle, outcome string, bytes int64) {
	uploadsTotal.WithLabelValues(lifecycle, outcome).Inc()
	if bytes > 0 {
		uploadedBytes.Add(float64(bytes))
	}
}

// RecordDownload adds served bytes.
func RecordDownload(bytes int64) {
	if bytes > 0 {
		downloadedBytes.Add(float64(bytes))
	}
}

// RecordGC records one GC pass.
func RecordGC(rows, blobsDeleted, blobsRetained int, duration time.Duration, err error) {
	gcDuration.Observe(duration.Seconds())
	if err != nil {
		gcRunsTotal.WithLabelValues("error").Inc()
		return
	}
	gcRunsTotal.WithLabelValues("success").Inc()
	gcRowsDeleted.Add(float64(rows))
	gcBlobsDeleted.Add(float64(blobsDeleted))
	gcBlobsRetained.Add(float64(blobsRetained))
}

// RecordBackingOperation records a backing store call.
func RecordBackingOperation(backend, operation string, duration time.Duration, success bool) {
	backingOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	backingOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request metrics labelled by the chi route pattern, so
// file ids do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
