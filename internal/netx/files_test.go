package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *FileClient {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c := NewFileClient(ts.URL+"/", ts.Client())
	c.SetToken("tok")
	return c
}

func TestUpload(t *testing.T) {
	var gotBody, gotAuth, gotPath, gotName string
	var gotLen int64

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotName = r.URL.Query().Get("name")
		gotAuth = r.Header.Get(common.AuthorizationHeaderName)
		gotLen = r.ContentLength
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(UploadResult{FileID: "id-1", Lifecycle: "ephemeral", SizeBytes: 5})
	})

	res, err := c.Upload(context.Background(), "ephemeral", "a b.txt", strings.NewReader("hello"), 5)
	require.NoError(t, err)

	assert.Equal(t, "id-1", res.FileID)
	assert.Equal(t, "/api/v1/files/ephemeral", gotPath)
	assert.Equal(t, "a b.txt", gotName)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, int64(5), gotLen)
	assert.Equal(t, "hello", gotBody)
}

func TestUpload_ErrorBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_ARGUMENT","message":"size mismatch"}}`))
	})

	_, err := c.Upload(context.Background(), "permanent", "x", strings.NewReader("x"), 1)
	require.ErrorIs(t, err, common.ErrorInvalidArgument)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "INVALID_ARGUMENT", apiErr.Code)
	assert.Equal(t, "size mismatch", apiErr.Message)
}

func TestDownload_Range(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=0-1", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 0-1/10")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("ab"))
	})

	var buf bytes.Buffer
	res, err := c.Download(context.Background(), "id-1", "bytes=0-1", &buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPartialContent, res.Status)
	assert.Equal(t, "bytes 0-1/10", res.ContentRange)
	assert.Equal(t, int64(2), res.Bytes)
	assert.Equal(t, "ab", buf.String())
}

func TestDownload_NotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Download(context.Background(), "id-1", "", io.Discard)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSize(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Length", "42")
		w.WriteHeader(http.StatusOK)
	})

	size, err := c.Size(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), size)
}

func TestDeletes(t *testing.T) {
	var calls []string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/api/v1/files/ephemeral/tombstone" {
			var body map[string][]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"a", "b"}, body["file_ids"])
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.DeleteMany(ctx, []string{"a", "b"}))
	require.NoError(t, c.DeleteAll(ctx))

	assert.Equal(t, []string{
		"DELETE /api/v1/files/a",
		"POST /api/v1/files/ephemeral/tombstone",
		"DELETE /api/v1/files/ephemeral",
	}, calls)
}

func TestCollect(t *testing.T) {
	var gotQuery string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(SweepResult{Rows: 3, BlobsDeleted: 2, BlobsRetained: 1})
	})

	res, err := c.Collect(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, "batch=25", gotQuery)
	assert.Equal(t, SweepResult{Rows: 3, BlobsDeleted: 2, BlobsRetained: 1}, *res)

	_, err = c.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
}

func TestAPIError_Unwrap(t *testing.T) {
	tests := map[int]error{
		http.StatusNotFound:            common.ErrorNotFound,
		http.StatusBadRequest:          common.ErrorInvalidArgument,
		http.StatusUnauthorized:        common.ErrorUnauthorized,
		http.StatusBadGateway:          common.ErrorBackingStore,
		http.StatusInternalServerError: common.ErrorInternal,
	}
	for status, want := range tests {
		assert.ErrorIs(t, &APIError{Status: status}, want)
	}
}
