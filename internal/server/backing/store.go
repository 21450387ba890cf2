// Package backing holds the physical blob stores: S3-compatible object
// storage, a local directory, an embedded Badger KV store and an in-memory
// double. Blobs are addressed by opaque physical keys chosen by the store.
package backing

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/filex"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/google/uuid"
)

// Store is the capability every blob backend provides.
//
// Errors: absent objects are reported as common.ErrorNotFound, declared
// size mismatches as common.ErrorInvalidArgument and transport failures
// wrapped in common.ErrorBackingStore.
type Store interface {
	// Upload consumes r to EOF and returns the new physical key.
	Upload(ctx context.Context, r io.Reader, name string) (string, error)
	// UploadSized is Upload with a declared content length.
	UploadSized(ctx context.Context, r io.Reader, name string, size int64) (string, error)
	// Delete removes key. An absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteMany removes every key; absent keys are skipped.
	DeleteMany(ctx context.Context, keys []string) error
	// Download opens the whole object.
	Download(ctx context.Context, key string) (*models.Download, error)
	// DownloadRange opens bytes [start, end] inclusive. Length is still the
	// full object length.
	DownloadRange(ctx context.Context, key string, start, end int64) (*models.Download, error)
	// Kind tells which backend this is.
	Kind() models.BackingKind
}

// blobName builds a unique object name from a client-supplied file name.
func blobName(name string) string {
	return fmt.Sprintf("%s-%s", filex.Sanitize(name), uuid.New())
}

func sizeMismatch(name string, want, got int64) error {
	return fmt.Errorf("%w: expected file size %d for uploaded file '%s' but content length is %d",
		common.ErrorInvalidArgument, want, name, got)
}

func checkRange(key string, start, end, length int64) error {
	if start < 0 || end < start || start >= length {
		return fmt.Errorf("%w: range %d-%d outside %s (%d bytes)", common.ErrorInvalidArgument, start, end, key, length)
	}
	return nil
}

// readCloser pairs a limited reader with the closer of the underlying source.
type readCloser struct {
	io.Reader
	io.Closer
}
