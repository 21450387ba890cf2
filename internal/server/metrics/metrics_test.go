package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestRecordGC(t *testing.T) {
	beforeOK := counterValue(t, gcRunsTotal.WithLabelValues("success"))
	beforeErr := counterValue(t, gcRunsTotal.WithLabelValues("error"))
	beforeRows := counterValue(t, gcRowsDeleted)
	beforeBlobs := counterValue(t, gcBlobsDeleted)

	RecordGC(4, 2, 1, time.Millisecond, nil)
	RecordGC(9, 9, 9, time.Millisecond, errors.New("boom"))

	assert.Equal(t, beforeOK+1, counterValue(t, gcRunsTotal.WithLabelValues("success")))
	assert.Equal(t, beforeErr+1, counterValue(t, gcRunsTotal.WithLabelValues("error")))
	assert.Equal(t, beforeRows+4, counterValue(t, gcRowsDeleted), "failed passes do not count rows")
	assert.Equal(t, beforeBlobs+2, counterValue(t, gcBlobsDeleted))
}

func TestRecordUploadAndBacking(t *testing.T) {
	before := counterValue(t, uploadsTotal.WithLabelValues("ephemeral", "deduplicated"))
	RecordUpload("ephemeral", "deduplicated", 10)
	assert.Equal(t, before+1, counterValue(t, uploadsTotal.WithLabelValues("ephemeral", "deduplicated")))

	beforeErr := counterValue(t, backingOperationsTotal.WithLabelValues("memory", "delete", "error"))
	RecordBackingOperation("memory", "delete", time.Millisecond, false)
	assert.Equal(t, beforeErr+1, counterValue(t, backingOperationsTotal.WithLabelValues("memory", "delete", "error")))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/v1/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := counterValue(t, httpRequestsTotal.WithLabelValues("GET", "/api/v1/files/{id}", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/abc", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, before+1, counterValue(t, httpRequestsTotal.WithLabelValues("GET", "/api/v1/files/{id}", "418")))
}

func TestHandler_ServesExposition(t *testing.T) {
	RecordDownload(1)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "filestore_downloaded_bytes_total")
}
