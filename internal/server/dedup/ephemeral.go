package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/backing"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/mappings"
	"github.com/google/uuid"
)

// EphemeralStore holds files that can be tombstoned and later collected.
type EphemeralStore struct {
	*contentStore
}

func NewEphemeralStore(repo mappings.Repository, blobs backing.Store, log logging.Logger) *EphemeralStore {
	return &EphemeralStore{contentStore: newContentStore(models.Ephemeral, repo, blobs, log)}
}

var (
	_ Store      = (*EphemeralStore)(nil)
	_ Tombstoner = (*EphemeralStore)(nil)
)

// SweepResult summarises one GC pass.
type SweepResult struct {
	Rows          int `json:"rows"`
	BlobsDeleted  int `json:"blobs_deleted"`
	BlobsRetained int `json:"blobs_retained"`
}

// Download refuses tombstoned files even while their blob still exists.
func (s *EphemeralStore) Download(ctx context.Context, m *models.FileMapping) (*models.Download, error) {
	if m.Tombstoned {
		return nil, tombstoned(m)
	}
	return s.contentStore.Download(ctx, m)
}

func (s *EphemeralStore) DownloadRange(ctx context.Context, m *models.FileMapping, start, end int64) (*models.Download, error) {
	if m.Tombstoned {
		return nil, tombstoned(m)
	}
	return s.contentStore.DownloadRange(ctx, m, start, end)
}

func tombstoned(m *models.FileMapping) error {
	return fmt.Errorf("%w: file %s is deleted", common.ErrorNotFound, m.FileID)
}

func notEphemeral(m *models.FileMapping) error {
	return fmt.Errorf("%w: file %s is %s, only ephemeral files can be deleted",
		common.ErrorInvalidArgument, m.FileID, m.Lifecycle)
}

// Tombstone marks one file deleted. Unknown ids are ignored.
func (s *EphemeralStore) Tombstone(ctx context.Context, id uuid.UUID) error {
	m, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if m.Lifecycle != models.Ephemeral {
		return notEphemeral(m)
	}
	m.Tombstoned = true
	if err := s.repo.Save(ctx, m); err != nil {
		return err
	}
	s.log.Info(ctx, "file tombstoned", "file_id", id.String())
	return nil
}

// TombstoneMany marks every existing id deleted. All rows are checked
// before any is written, so a permanent id leaves the batch untouched.
func (s *EphemeralStore) TombstoneMany(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.repo.FindAllByID(ctx, ids)
	if err != nil {
		return err
	}
	for _, m := range rows {
		if m.Lifecycle != models.Ephemeral {
			return notEphemeral(m)
		}
	}
	for _, m := range rows {
		m.Tombstoned = true
	}
	if err := s.repo.SaveAll(ctx, rows); err != nil {
		return err
	}
	s.log.Info(ctx, "files tombstoned", "requested", len(ids), "found", len(rows))
	return nil
}

// TombstoneAll marks every ephemeral file deleted.
func (s *EphemeralStore) TombstoneAll(ctx context.Context) error {
	rows, err := s.repo.FindByLifecycle(ctx, models.Ephemeral)
	if err != nil {
		return err
	}
	for _, m := range rows {
		m.Tombstoned = true
	}
	if err := s.repo.SaveAll(ctx, rows); err != nil {
		return err
	}
	s.log.Info(ctx, "all ephemeral files tombstoned", "count", len(rows))
	return nil
}

// DeleteTombstonedBatch collects up to n tombstoned rows. A blob is deleted
// only when every row referencing it is part of the batch. Blobs go first
// and rows last, so a pass interrupted in between is finished by the next
// one.
func (s *EphemeralStore) DeleteTombstonedBatch(ctx context.Context, n int) (SweepResult, error) {
	var res SweepResult
	if n <= 0 {
		return res, fmt.Errorf("%w: batch size must be positive, got %d", common.ErrorInvalidArgument, n)
	}

	batch, err := s.repo.FindTombstonedPage(ctx, n)
	if err != nil {
		return res, err
	}
	if len(batch) == 0 {
		return res, nil
	}

	inBatch := make(map[uuid.UUID]struct{}, len(batch))
	var blobs []blobRef
	seen := make(map[blobRef]struct{})
	for _, m := range batch {
		inBatch[m.FileID] = struct{}{}
		ref := blobRef{kind: m.BackingKind, key: m.PhysicalKey}
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			blobs = append(blobs, ref)
		}
	}

	for _, ref := range blobs {
		// Blobs written through another backend are unreachable here; the
		// rows are still collected.
		if ref.kind != s.blobs.Kind() {
			res.BlobsRetained++
			s.log.Warn(ctx, "skipping blob of another backend",
				"physical_key", ref.key, "backing_kind", string(ref.kind))
			continue
		}
		refs, err := s.repo.FindByPhysicalKey(ctx, ref.key)
		if err != nil {
			return res, err
		}
		if hasReferenceOutside(refs, ref.kind, inBatch) {
			res.BlobsRetained++
			continue
		}
		if err := s.blobs.Delete(ctx, ref.key); err != nil {
			return res, fmt.Errorf("delete blob %s: %w", ref.key, err)
		}
		res.BlobsDeleted++
		s.log.Debug(ctx, "blob deleted", "physical_key", ref.key)
	}

	if err := s.repo.DeleteAll(ctx, batch); err != nil {
		return res, err
	}
	res.Rows = len(batch)

	s.log.Info(ctx, "tombstoned files collected",
		"rows", res.Rows,
		"blobs_deleted", res.BlobsDeleted,
		"blobs_retained", res.BlobsRetained,
	)
	return res, nil
}

type blobRef struct {
	kind models.BackingKind
	key  string
}

func hasReferenceOutside(refs []*models.FileMapping, kind models.BackingKind, batch map[uuid.UUID]struct{}) bool {
	for _, r := range refs {
		if r.BackingKind != kind {
			continue
		}
		if _, ok := batch[r.FileID]; !ok {
			return true
		}
	}
	return false
}
