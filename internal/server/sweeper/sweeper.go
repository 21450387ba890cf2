// Package sweeper runs the ephemeral file GC on a schedule.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/dedup"
	"github.com/dmitrijs2005/filestore/internal/server/metrics"
)

// Collector deletes one batch of tombstoned files.
type Collector interface {
	DeleteEphemeralBatch(ctx context.Context, n int) (dedup.SweepResult, error)
}

// Sweeper calls the collector every interval. Passes never overlap, whether
// started by the ticker or by RunBatch.
type Sweeper struct {
	collector Collector
	batch     int
	interval  time.Duration
	log       logging.Logger

	pass sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(c Collector, batch int, interval time.Duration, log logging.Logger) *Sweeper {
	return &Sweeper{
		collector: c,
		batch:     batch,
		interval:  interval,
		log:       log.With("module", "sweeper"),
	}
}

// RunOnce collects one batch of the configured size.
func (s *Sweeper) RunOnce(ctx context.Context) (dedup.SweepResult, error) {
	return s.RunBatch(ctx, s.batch)
}

// RunBatch collects one batch of at most n files.
func (s *Sweeper) RunBatch(ctx context.Context, n int) (dedup.SweepResult, error) {
	s.pass.Lock()
	defer s.pass.Unlock()

	start := time.Now()
	res, err := s.collector.DeleteEphemeralBatch(ctx, n)
	metrics.RecordGC(res.Rows, res.BlobsDeleted, res.BlobsRetained, time.Since(start), err)
	if err != nil {
		s.log.Error(ctx, "gc pass failed", "batch", n, "error", err)
		return res, err
	}
	if res.Rows > 0 {
		s.log.Info(ctx, "gc pass finished",
			"rows", res.Rows,
			"blobs_deleted", res.BlobsDeleted,
			"blobs_retained", res.BlobsRetained,
			"duration", time.Since(start).String(),
		)
	}
	return res, nil
}

// Start launches the ticker loop. It is a no-op when already running or
// when the interval is not positive.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	s.log.Info(ctx, "sweeper started", "interval", s.interval.String(), "batch", s.batch)
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}

// Stop cancels the loop and waits for a running pass to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
