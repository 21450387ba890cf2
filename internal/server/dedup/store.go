// Package dedup implements the deduplicating file stores. Uploaded content is
// hashed with SHA-256 and SHA-512 while it streams to the backing store; a
// live mapping with the same pair of digests makes the new blob redundant,
// so it is deleted and the new mapping shares the existing physical key.
//
// PermanentStore never deletes anything. EphemeralStore adds tombstoning and
// a reference-counted batch GC that only removes a blob once no mapping in
// any lifecycle refers to it.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/backing"
	"github.com/dmitrijs2005/filestore/internal/server/metrics"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/mappings"
	"github.com/google/uuid"
)

// Store is a deduplicating file store for one lifecycle.
type Store interface {
	Upload(ctx context.Context, name string, r io.Reader) (*models.FileMapping, error)
	UploadSized(ctx context.Context, name string, size int64, r io.Reader) (*models.FileMapping, error)
	Download(ctx context.Context, m *models.FileMapping) (*models.Download, error)
	// DownloadRange reads bytes [start, end] inclusive.
	DownloadRange(ctx context.Context, m *models.FileMapping, start, end int64) (*models.Download, error)
	Lifecycle() models.Lifecycle
}

// Tombstoner is implemented by stores whose files can be deleted.
type Tombstoner interface {
	Tombstone(ctx context.Context, id uuid.UUID) error
	TombstoneMany(ctx context.Context, ids []uuid.UUID) error
	TombstoneAll(ctx context.Context) error
	DeleteTombstonedBatch(ctx context.Context, n int) (SweepResult, error)
}

// contentStore is the upload/download core shared by both lifecycles.
type contentStore struct {
	lifecycle models.Lifecycle
	repo      mappings.Repository
	blobs     backing.Store
	log       logging.Logger
}

func newContentStore(l models.Lifecycle, repo mappings.Repository, blobs backing.Store, log logging.Logger) *contentStore {
	return &contentStore{
		lifecycle: l,
		repo:      repo,
		blobs:     blobs,
		log:       log.With("module", "dedup", "lifecycle", string(l)),
	}
}

func (s *contentStore) Lifecycle() models.Lifecycle { return s.lifecycle }

func (s *contentStore) Upload(ctx context.Context, name string, r io.Reader) (*models.FileMapping, error) {
	return s.upload(ctx, name, -1, r)
}

func (s *contentStore) UploadSized(ctx context.Context, name string, size int64, r io.Reader) (*models.FileMapping, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", common.ErrorInvalidArgument, size)
	}
	return s.upload(ctx, name, size, r)
}

// upload streams r to the backing store, then resolves duplicates.
// declared < 0 means the caller gave no size.
func (s *contentStore) upload(ctx context.Context, name string, declared int64, r io.Reader) (*models.FileMapping, error) {
	hr := newHashingReader(r)

	var (
		key string
		err error
	)
	if declared < 0 {
		key, err = s.blobs.Upload(ctx, hr, name)
	} else {
		key, err = s.blobs.UploadSized(ctx, hr, name, declared)
	}
	if err != nil {
		metrics.RecordUpload(string(s.lifecycle), "error", 0)
		return nil, err
	}

	if declared >= 0 && hr.Count() != declared {
		metrics.RecordUpload(string(s.lifecycle), "error", 0)
		err := fmt.Errorf("%w: expected file size %d for uploaded file '%s' but content length is %d",
			common.ErrorInvalidArgument, declared, name, hr.Count())
		return nil, s.discard(ctx, key, err)
	}

	m := &models.FileMapping{
		FileID:    uuid.New(),
		Lifecycle: s.lifecycle,
		SHA256:    hr.SHA256(),
		SHA512:    hr.SHA512(),
		SizeBytes: hr.Count(),
	}

	existing, err := s.findDuplicate(ctx, m.SHA256, m.SHA512)
	if err != nil {
		metrics.RecordUpload(string(s.lifecycle), "error", 0)
		return nil, s.discard(ctx, key, err)
	}

	outcome := "stored"
	if existing != nil {
		if err := s.blobs.Delete(ctx, key); err != nil {
			metrics.RecordUpload(string(s.lifecycle), "error", 0)
			return nil, fmt.Errorf("delete duplicate blob %s: %w", key, err)
		}
		m.PhysicalKey = existing.PhysicalKey
		m.BackingKind = existing.BackingKind
		outcome = "deduplicated"
	} else {
		m.PhysicalKey = key
		m.BackingKind = s.blobs.Kind()
	}

	if err := s.repo.Save(ctx, m); err != nil {
		metrics.RecordUpload(string(s.lifecycle), "error", 0)
		if existing != nil {
			return nil, fmt.Errorf("save mapping: %w", err)
		}
		return nil, s.discard(ctx, key, fmt.Errorf("save mapping: %w", err))
	}

	metrics.RecordUpload(string(s.lifecycle), outcome, m.SizeBytes)
	s.log.Info(ctx, "file uploaded",
		"file_id", m.FileID.String(),
		"physical_key", m.PhysicalKey,
		"size_bytes", m.SizeBytes,
		"deduplicated", existing != nil,
	)
	return m, nil
}

// findDuplicate returns the oldest live mapping with the same digests whose
// blob lives in this store's backend, or nil.
func (s *contentStore) findDuplicate(ctx context.Context, sha256, sha512 string) (*models.FileMapping, error) {
	candidates, err := s.repo.FindByHashes(ctx, sha256, sha512)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	for _, c := range candidates {
		if c.BackingKind == s.blobs.Kind() {
			return c, nil
		}
	}
	return nil, nil
}

// discard deletes a blob that will not get a mapping and returns cause,
// joined with the delete error if that failed too.
func (s *contentStore) discard(ctx context.Context, key string, cause error) error {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.log.Error(ctx, "failed to delete orphaned blob", "physical_key", key, "error", err)
		return errors.Join(cause, fmt.Errorf("delete orphaned blob %s: %w", key, err))
	}
	return cause
}

func (s *contentStore) Download(ctx context.Context, m *models.FileMapping) (*models.Download, error) {
	if err := s.checkReadable(m); err != nil {
		return nil, err
	}
	d, err := s.blobs.Download(ctx, m.PhysicalKey)
	if err != nil {
		return nil, err
	}
	metrics.RecordDownload(d.Length)
	return d, nil
}

func (s *contentStore) DownloadRange(ctx context.Context, m *models.FileMapping, start, end int64) (*models.Download, error) {
	if err := s.checkReadable(m); err != nil {
		return nil, err
	}
	d, err := s.blobs.DownloadRange(ctx, m.PhysicalKey, start, end)
	if err != nil {
		return nil, err
	}
	metrics.RecordDownload(min(end, d.Length-1) - start + 1)
	return d, nil
}

func (s *contentStore) checkReadable(m *models.FileMapping) error {
	if m.BackingKind != s.blobs.Kind() {
		return fmt.Errorf("%w: file %s lives in the %s backend, this server uses %s",
			common.ErrorBackingStore, m.FileID, m.BackingKind, s.blobs.Kind())
	}
	return nil
}
