// Package services contains server-side business logic. FileService is the
// single entry point used by the transports: it routes every file operation
// to the permanent or ephemeral deduplicating store by the lifecycle
// recorded on the file's mapping.
package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/dedup"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/dmitrijs2005/filestore/internal/server/rangeio"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/mappings"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// EphemeralStore is a store whose files can be tombstoned and collected.
type EphemeralStore interface {
	dedup.Store
	dedup.Tombstoner
}

// RegionStream is one bounded region of a file. Body starts at Region.Start
// and must be skipped there before reading.
type RegionStream struct {
	Region rangeio.Region
	// Size is the full file size.
	Size int64
	// Partial is set when the region is not the whole file.
	Partial bool
	Body    *rangeio.PartialReader
}

// FileService is the file store facade.
type FileService struct {
	repo      mappings.Repository
	permanent dedup.Store
	ephemeral EphemeralStore
	regions   rangeio.RegionFactory
	sizes     *lru.Cache[uuid.UUID, int64]
	log       logging.Logger
}

// NewFileService builds the facade. sizeCacheEntries bounds the file size
// cache.
func NewFileService(repo mappings.Repository, permanent dedup.Store, ephemeral EphemeralStore,
	regions rangeio.RegionFactory, sizeCacheEntries int, log logging.Logger) (*FileService, error) {
	if sizeCacheEntries <= 0 {
		sizeCacheEntries = 1
	}
	sizes, err := lru.New[uuid.UUID, int64](sizeCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("size cache: %w", err)
	}
	return &FileService{
		repo:      repo,
		permanent: permanent,
		ephemeral: ephemeral,
		regions:   regions,
		sizes:     sizes,
		log:       log.With("module", "files"),
	}, nil
}

func (s *FileService) TransferToPermanent(ctx context.Context, r io.Reader, name string) (*models.FileMapping, error) {
	return s.permanent.Upload(ctx, name, r)
}

func (s *FileService) TransferToPermanentSized(ctx context.Context, r io.Reader, name string, size int64) (*models.FileMapping, error) {
	return s.permanent.UploadSized(ctx, name, size, r)
}

func (s *FileService) TransferToEphemeral(ctx context.Context, r io.Reader, name string) (*models.FileMapping, error) {
	return s.ephemeral.Upload(ctx, name, r)
}

func (s *FileService) TransferToEphemeralSized(ctx context.Context, r io.Reader, name string, size int64) (*models.FileMapping, error) {
	return s.ephemeral.UploadSized(ctx, name, size, r)
}

// Transfer uploads into the store of lifecycle l. size < 0 means unknown.
func (s *FileService) Transfer(ctx context.Context, l models.Lifecycle, r io.Reader, name string, size int64) (*models.FileMapping, error) {
	switch {
	case l == models.Permanent && size >= 0:
		return s.TransferToPermanentSized(ctx, r, name, size)
	case l == models.Permanent:
		return s.TransferToPermanent(ctx, r, name)
	case l == models.Ephemeral && size >= 0:
		return s.TransferToEphemeralSized(ctx, r, name, size)
	case l == models.Ephemeral:
		return s.TransferToEphemeral(ctx, r, name)
	default:
		return nil, fmt.Errorf("%w: unknown lifecycle %q", common.ErrorInvalidArgument, l)
	}
}

// ParseLifecycle accepts a lifecycle name in any case.
func ParseLifecycle(v string) (models.Lifecycle, error) {
	l := models.Lifecycle(strings.ToLower(v))
	if !l.Valid() {
		return "", fmt.Errorf("%w: unknown lifecycle %q", common.ErrorInvalidArgument, v)
	}
	return l, nil
}

// lookup loads a visible mapping and the store that owns it.
func (s *FileService) lookup(ctx context.Context, id uuid.UUID) (*models.FileMapping, dedup.Store, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	switch m.Lifecycle {
	case models.Permanent:
		return m, s.permanent, nil
	case models.Ephemeral:
		if m.Tombstoned {
			return nil, nil, fmt.Errorf("%w: file %s is deleted", common.ErrorNotFound, id)
		}
		return m, s.ephemeral, nil
	default:
		return nil, nil, fmt.Errorf("%w: file %s has unknown lifecycle %q", common.ErrorInternal, id, m.Lifecycle)
	}
}

// Describe returns the mapping of a visible file.
func (s *FileService) Describe(ctx context.Context, id uuid.UUID) (*models.FileMapping, error) {
	m, _, err := s.lookup(ctx, id)
	return m, err
}

// FileSize returns the size of a visible file. Only permanent sizes are
// cached: an ephemeral file can be tombstoned at any time.
func (s *FileService) FileSize(ctx context.Context, id uuid.UUID) (int64, error) {
	if size, ok := s.sizes.Get(id); ok {
		return size, nil
	}
	m, _, err := s.lookup(ctx, id)
	if err != nil {
		return 0, err
	}
	if m.Lifecycle == models.Permanent {
		s.sizes.Add(id, m.SizeBytes)
	}
	return m.SizeBytes, nil
}

// Stream opens the whole file.
func (s *FileService) Stream(ctx context.Context, id uuid.UUID) (*models.Download, error) {
	m, store, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return store.Download(ctx, m)
}

// StreamFrom opens the file from start to its end. Starting at the end,
// which is always the case for an empty file, yields an empty stream.
func (s *FileService) StreamFrom(ctx context.Context, id uuid.UUID, start int64) (*models.Download, error) {
	m, store, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if start == m.SizeBytes {
		return &models.Download{Body: io.NopCloser(strings.NewReader("")), Length: m.SizeBytes}, nil
	}
	return store.DownloadRange(ctx, m, start, m.SizeBytes-1)
}

// StreamRange opens bytes [start, end] inclusive.
func (s *FileService) StreamRange(ctx context.Context, id uuid.UUID, start, end int64) (*models.Download, error) {
	m, store, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return store.DownloadRange(ctx, m, start, end)
}

// OpenRegion resolves rangeHeader against the file and opens the resulting
// region. Without a header the first chunk is served.
func (s *FileService) OpenRegion(ctx context.Context, id uuid.UUID, rangeHeader string) (*RegionStream, error) {
	rng, err := rangeio.ParseRange(rangeHeader)
	if err != nil {
		return nil, err
	}
	m, store, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	region, err := s.regions.Region(rng, m.SizeBytes)
	if err != nil {
		return nil, err
	}

	rs := &RegionStream{
		Region:  region,
		Size:    m.SizeBytes,
		Partial: rng != nil || region.Count < m.SizeBytes,
	}
	if region.Count == 0 {
		rs.Body = rangeio.NewPartialReader(io.NopCloser(strings.NewReader("")), 0)
		return rs, nil
	}

	d, err := store.DownloadRange(ctx, m, region.Start, region.End)
	if err != nil {
		return nil, err
	}
	rs.Body = rangeio.NewPartialReader(d.Body, region.Start)
	return rs, nil
}

func (s *FileService) TombstoneEphemeralFile(ctx context.Context, id uuid.UUID) error {
	return s.ephemeral.Tombstone(ctx, id)
}

func (s *FileService) TombstoneEphemeralFiles(ctx context.Context, ids []uuid.UUID) error {
	return s.ephemeral.TombstoneMany(ctx, ids)
}

func (s *FileService) TombstoneAllEphemeral(ctx context.Context) error {
	return s.ephemeral.TombstoneAll(ctx)
}

// DeleteEphemeralBatch runs one GC pass over at most n tombstoned files.
func (s *FileService) DeleteEphemeralBatch(ctx context.Context, n int) (dedup.SweepResult, error) {
	return s.ephemeral.DeleteTombstonedBatch(ctx, n)
}
