package dedup

import (
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/backing"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/mappings"
)

// PermanentStore holds files that are never deleted.
type PermanentStore struct {
	*contentStore
}

func NewPermanentStore(repo mappings.Repository, blobs backing.Store, log logging.Logger) *PermanentStore {
	return &PermanentStore{contentStore: newContentStore(models.Permanent, repo, blobs, log)}
}

var _ Store = (*PermanentStore)(nil)
