// Package mappings persists FileMapping rows: the link between logical file
// ids and the physical blobs that hold their content.
package mappings

import (
	"context"

	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/google/uuid"
)

// Repository is the mapping store. Implementations must be safe for
// concurrent use.
type Repository interface {
	// FindByHashes returns live (non-tombstoned) rows with the given digests
	// in any lifecycle, oldest first.
	FindByHashes(ctx context.Context, sha256, sha512 string) ([]*models.FileMapping, error)
	// FindByID returns common.ErrorNotFound when the id is unknown.
	FindByID(ctx context.Context, id uuid.UUID) (*models.FileMapping, error)
	// FindAllByID returns the rows that exist; unknown ids are skipped.
	FindAllByID(ctx context.Context, ids []uuid.UUID) ([]*models.FileMapping, error)
	// FindTombstonedPage returns up to pageSize tombstoned rows, oldest first.
	FindTombstonedPage(ctx context.Context, pageSize int) ([]*models.FileMapping, error)
	// FindByPhysicalKey returns every row referencing key regardless of
	// lifecycle or tombstone state.
	FindByPhysicalKey(ctx context.Context, key string) ([]*models.FileMapping, error)
	FindByLifecycle(ctx context.Context, l models.Lifecycle) ([]*models.FileMapping, error)
	// Save inserts m or updates its tombstone flag if the row exists.
	Save(ctx context.Context, m *models.FileMapping) error
	SaveAll(ctx context.Context, ms []*models.FileMapping) error
	DeleteAll(ctx context.Context, ms []*models.FileMapping) error
	DeleteAllByPhysicalKeyIn(ctx context.Context, keys []string) error
}
