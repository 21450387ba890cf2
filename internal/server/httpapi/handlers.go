package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type uploadResponse struct {
	FileID    string `json:"file_id"`
	Lifecycle string `json:"lifecycle"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
	SHA512    string `json:"sha512"`
}

type tombstoneRequest struct {
	FileIDs []string `json:"file_ids"`
}

func (s *HTTPServer) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func fileID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad file id %q", common.ErrorInvalidArgument, raw)
	}
	return id, nil
}

// upload stores the request body. A known Content-Length makes it a sized
// upload.
func (s *HTTPServer) upload(w http.ResponseWriter, r *http.Request) {
	l, err := services.ParseLifecycle(chi.URLParam(r, "lifecycle"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.Body.Close()

	var body io.Reader = r.Body
	if r.ContentLength >= 0 {
		body = sizedBody{Reader: r.Body, declared: r.ContentLength}
	}

	m, err := s.files.Transfer(r.Context(), l, body, r.URL.Query().Get("name"), r.ContentLength)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		FileID:    m.FileID.String(),
		Lifecycle: string(m.Lifecycle),
		SizeBytes: m.SizeBytes,
		SHA256:    m.SHA256,
		SHA512:    m.SHA512,
	})
}

// sizedBody reports a body cut short of its Content-Length as a size
// mismatch rather than a transport failure.
type sizedBody struct {
	io.Reader
	declared int64
}

func (b sizedBody) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: body ended before Content-Length %d: %w", common.ErrorInvalidArgument, b.declared, err)
	}
	return n, err
}

// download serves one region of the file: the requested range or the first
// chunk, never more than the configured chunk size.
func (s *HTTPServer) download(w http.ResponseWriter, r *http.Request) {
	id, err := fileID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rs, err := s.files.OpenRegion(r.Context(), id, r.Header.Get("Range"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rs.Body.Close()

	if _, err := rs.Body.Skip(rs.Region.Start); err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Length", strconv.FormatInt(rs.Region.Count, 10))
	status := http.StatusOK
	if rs.Partial {
		h.Set("Content-Range", rs.Region.ContentRange(rs.Size))
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if _, err := io.CopyN(w, rs.Body, rs.Region.Count); err != nil {
		s.logger.Warn(r.Context(), "download interrupted", "file_id", id.String(), "error", err)
	}
}

func (s *HTTPServer) head(w http.ResponseWriter, r *http.Request) {
	id, err := fileID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	size, err := s.files.FileSize(r.Context(), id)
	if err != nil {
		status, _ := statusFor(err)
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
}

func (s *HTTPServer) tombstone(w http.ResponseWriter, r *http.Request) {
	id, err := fileID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.files.TombstoneEphemeralFile(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) tombstoneMany(w http.ResponseWriter, r *http.Request) {
	var req tombstoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: bad request body: %w", common.ErrorInvalidArgument, err))
		return
	}
	ids := make([]uuid.UUID, 0, len(req.FileIDs))
	for _, raw := range req.FileIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: bad file id %q", common.ErrorInvalidArgument, raw))
			return
		}
		ids = append(ids, id)
	}
	if err := s.files.TombstoneEphemeralFiles(r.Context(), ids); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) tombstoneAll(w http.ResponseWriter, r *http.Request) {
	if err := s.files.TombstoneAllEphemeral(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// collect runs one GC pass; ?batch=N overrides the configured batch size.
func (s *HTTPServer) collect(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("batch")
	if raw == "" {
		res, err := s.gc.RunOnce(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		s.writeError(w, r, fmt.Errorf("%w: batch must be a positive integer, got %q", common.ErrorInvalidArgument, raw))
		return
	}
	res, err := s.gc.RunBatch(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
