package backing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/google/uuid"
)

// MemoryStore keeps blobs in a map. Suitable for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(_ context.Context, r io.Reader, name string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: unable to upload file %s: %w", common.ErrorBackingStore, name, err)
	}
	return s.put(content), nil
}

func (s *MemoryStore) UploadSized(_ context.Context, r io.Reader, name string, size int64) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: unable to upload file %s: %w", common.ErrorBackingStore, name, err)
	}
	if int64(len(content)) != size {
		return "", sizeMismatch(name, size, int64(len(content)))
	}
	return s.put(content), nil
}

func (s *MemoryStore) put(content []byte) string {
	key := uuid.NewString()
	s.mu.Lock()
	s.blobs[key] = content
	s.mu.Unlock()
	return key
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.blobs, k)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Download(_ context.Context, key string) (*models.Download, error) {
	content, err := s.get(key)
	if err != nil {
		return nil, err
	}
	return &models.Download{Body: io.NopCloser(bytes.NewReader(content)), Length: int64(len(content))}, nil
}

func (s *MemoryStore) DownloadRange(_ context.Context, key string, start, end int64) (*models.Download, error) {
	content, err := s.get(key)
	if err != nil {
		return nil, err
	}
	length := int64(len(content))
	if err := checkRange(key, start, end, length); err != nil {
		return nil, err
	}
	end = min(end, length-1)
	return &models.Download{Body: io.NopCloser(bytes.NewReader(content[start : end+1])), Length: length}, nil
}

func (s *MemoryStore) Kind() models.BackingKind { return models.BackingMemory }

// Len reports the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Has reports whether key is stored.
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok
}

func (s *MemoryStore) get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: file '%s' not in filestore", common.ErrorNotFound, key)
	}
	return content, nil
}
