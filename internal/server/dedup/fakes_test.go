package dedup

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/filestore/internal/server/backing"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/mappings"
)

// lenientStore ignores declared sizes, like an object store that trusts
// the caller.
type lenientStore struct {
	*backing.MemoryStore
}

func (s lenientStore) UploadSized(ctx context.Context, r io.Reader, name string, _ int64) (string, error) {
	return s.MemoryStore.Upload(ctx, r, name)
}

// flakyStore fails Delete for the listed keys, or for every key.
type flakyStore struct {
	*backing.MemoryStore
	failDelete map[string]bool
	failAll    bool
	deletes    []string
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	s.deletes = append(s.deletes, key)
	if s.failAll || s.failDelete[key] {
		return errors.New("connection reset")
	}
	return s.MemoryStore.Delete(ctx, key)
}

// failingUploadStore rejects every upload.
type failingUploadStore struct {
	backing.Store
}

func (failingUploadStore) Upload(context.Context, io.Reader, string) (string, error) {
	return "", errors.New("bucket unavailable")
}

func (failingUploadStore) Kind() models.BackingKind { return models.BackingMemory }

// crashingRepo fails DeleteAll, standing in for a process killed between
// the blob deletes and the row removal.
type crashingRepo struct {
	mappings.Repository
	crash bool
}

func (r *crashingRepo) DeleteAll(ctx context.Context, ms []*models.FileMapping) error {
	if r.crash {
		return errors.New("killed")
	}
	return r.Repository.DeleteAll(ctx, ms)
}
