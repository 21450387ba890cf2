package backing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	badgerdb "github.com/dgraph-io/badger/v3"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/models"
)

const badgerKeyPrefix = "blob/"

// BadgerStore keeps whole blobs as values in an embedded Badger database.
// It plays the role of a document-store blob backend: no external service,
// one value per physical key.
type BadgerStore struct {
	db *badgerdb.DB
}

// NewBadgerStore opens (or creates) a Badger database in dir. An empty dir
// opens an in-memory database.
func NewBadgerStore(dir string, log logging.Logger) (*BadgerStore, error) {
	var opts badgerdb.Options
	if dir == "" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: mkdir %s: %w", common.ErrorBackingStore, dir, err)
		}
		opts = badgerdb.DefaultOptions(dir)
		opts.SyncWrites = true
		opts.ValueLogFileSize = 512 << 20
	}
	opts.BlockCacheSize = 64 << 20
	opts.IndexCacheSize = 64 << 20
	opts.NumMemtables = 2
	opts.Logger = newBadgerLogger(log)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %w", common.ErrorBackingStore, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Upload(_ context.Context, r io.Reader, name string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: unable to upload file %s: %w", common.ErrorBackingStore, name, err)
	}
	return s.put(name, content)
}

func (s *BadgerStore) UploadSized(_ context.Context, r io.Reader, name string, size int64) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: unable to upload file %s: %w", common.ErrorBackingStore, name, err)
	}
	if int64(len(content)) != size {
		return "", sizeMismatch(name, size, int64(len(content)))
	}
	return s.put(name, content)
}

func (s *BadgerStore) put(name string, content []byte) (string, error) {
	key := blobName(name)
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(badgerKey(key), content)
	})
	if err != nil {
		return "", fmt.Errorf("%w: store %s: %w", common.ErrorBackingStore, name, err)
	}
	return key, nil
}

func (s *BadgerStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(badgerKey(key))
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", common.ErrorBackingStore, key, err)
	}
	return nil
}

func (s *BadgerStore) DeleteMany(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, k := range keys {
		if err := wb.Delete(badgerKey(k)); err != nil {
			return fmt.Errorf("%w: delete %s: %w", common.ErrorBackingStore, k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("%w: flush deletes: %w", common.ErrorBackingStore, err)
	}
	return nil
}

func (s *BadgerStore) Download(_ context.Context, key string) (*models.Download, error) {
	content, err := s.get(key)
	if err != nil {
		return nil, err
	}
	return &models.Download{Body: io.NopCloser(bytes.NewReader(content)), Length: int64(len(content))}, nil
}

func (s *BadgerStore) DownloadRange(_ context.Context, key string, start, end int64) (*models.Download, error) {
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

func (s *BadgerStore) Kind() models.BackingKind { return models.BackingBadger }

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) get(key string) ([]byte, error) {
	var content []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", common.ErrorNotFound, key)
		}
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrorBackingStore, key, err)
	}
	return content, nil
}

func badgerKey(key string) []byte {
	return []byte(badgerKeyPrefix + key)
}

// badgerLogger routes Badger's printf-style logs into logging.Logger.
type badgerLogger struct {
	log logging.Logger
}

func newBadgerLogger(log logging.Logger) *badgerLogger {
	if log == nil {
		log = logging.Nop{}
	}
	return &badgerLogger{log: log.With("component", "badger")}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}
