// Package httpapi exposes the file store over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/dedup"
	"github.com/dmitrijs2005/filestore/internal/server/metrics"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/dmitrijs2005/filestore/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Files is the part of the file facade the handlers use.
type Files interface {
	Transfer(ctx context.Context, l models.Lifecycle, r io.Reader, name string, size int64) (*models.FileMapping, error)
	FileSize(ctx context.Context, id uuid.UUID) (int64, error)
	OpenRegion(ctx context.Context, id uuid.UUID, rangeHeader string) (*services.RegionStream, error)
	TombstoneEphemeralFile(ctx context.Context, id uuid.UUID) error
	TombstoneEphemeralFiles(ctx context.Context, ids []uuid.UUID) error
	TombstoneAllEphemeral(ctx context.Context) error
}

// Collector runs GC passes on demand.
type Collector interface {
	RunOnce(ctx context.Context) (dedup.SweepResult, error)
	RunBatch(ctx context.Context, n int) (dedup.SweepResult, error)
}

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	address   string
	files     Files
	gc        Collector
	logger    logging.Logger
	jwtSecret []byte
}

func NewHTTPServer(a string, l logging.Logger, files Files, gc Collector, secretKey string) *HTTPServer {
	return &HTTPServer{
		address:   a,
		files:     files,
		gc:        gc,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
	}
}

// Router builds the route tree. Everything under /api requires a bearer
// token.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/files/{lifecycle}", s.upload)
		r.Post("/files/ephemeral/tombstone", s.tombstoneMany)
		r.Delete("/files/ephemeral", s.tombstoneAll)
		r.Get("/files/{id}", s.download)
		r.Head("/files/{id}", s.head)
		r.Delete("/files/{id}", s.tombstone)

		r.Post("/admin/gc", s.collect)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
