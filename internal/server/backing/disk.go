package backing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/filex"
	"github.com/dmitrijs2005/filestore/internal/server/models"
)

// DiskStore keeps each blob as one file under a root directory. Physical
// keys are bare file names; writes go through a temp file and an atomic
// rename so a crash never leaves a partial blob under a live key.
type DiskStore struct {
	root string
}

// NewDiskStore creates root if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	dir, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorBackingStore, err)
	}
	return &DiskStore{root: dir}, nil
}

func (s *DiskStore) Upload(_ context.Context, r io.Reader, name string) (string, error) {
	key := blobName(name)
	if _, err := filex.WriteAtomic(filepath.Join(s.root, key), r); err != nil {
		return "", fmt.Errorf("%w: upload %s: %w", common.ErrorBackingStore, name, err)
	}
	return key, nil
}

func (s *DiskStore) UploadSized(_ context.Context, r io.Reader, name string, size int64) (string, error) {
	key := blobName(name)
	path := filepath.Join(s.root, key)

	n, err := filex.WriteAtomic(path, r)
	if err != nil {
		return "", fmt.Errorf("%w: upload %s: %w", common.ErrorBackingStore, name, err)
	}
	if n != size {
		_ = filex.RemoveIfExists(path)
		return "", sizeMismatch(name, size, n)
	}
	return key, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := filex.RemoveIfExists(path); err != nil {
		return fmt.Errorf("%w: %w", common.ErrorBackingStore, err)
	}
	return nil
}

func (s *DiskStore) DeleteMany(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *DiskStore) Download(_ context.Context, key string) (*models.Download, error) {
	f, length, err := s.open(key)
	if err != nil {
		return nil, err
	}
	return &models.Download{Body: f, Length: length}, nil
}

func (s *DiskStore) DownloadRange(_ context.Context, key string, start, end int64) (*models.Download, error) {
	f, length, err := s.open(key)
	if err != nil {
		return nil, err
	}
	if err := checkRange(key, start, end, length); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: seek %s: %w", common.ErrorBackingStore, key, err)
	}
	end = min(end, length-1)
	return &models.Download{
		Body:   readCloser{Reader: io.LimitReader(f, end-start+1), Closer: f},
		Length: length,
	}, nil
}

func (s *DiskStore) Kind() models.BackingKind { return models.BackingDisk }

func (s *DiskStore) open(key string) (*os.File, int64, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", common.ErrorNotFound, key)
		}
		return nil, 0, fmt.Errorf("%w: open %s: %w", common.ErrorBackingStore, key, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: stat %s: %w", common.ErrorBackingStore, key, err)
	}
	return f, info.Size(), nil
}

// path rejects keys that would escape the root directory.
func (s *DiskStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: bad disk key %q", common.ErrorInvalidArgument, key)
	}
	return filepath.Join(s.root, key), nil
}
