package backing

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, d *models.Download) string {
	t.Helper()
	defer d.Body.Close()
	b, err := io.ReadAll(d.Body)
	require.NoError(t, err)
	return string(b)
}

// localStores returns every backend that runs without external services.
func localStores(t *testing.T) map[string]Store {
	t.Helper()

	disk, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	bdg, err := NewBadgerStore("", logging.Nop{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdg.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"disk":   disk,
		"badger": bdg,
	}
}

func TestStores_UploadDownloadDelete(t *testing.T) {
	ctx := context.Background()

	for name, s := range localStores(t) {
		t.Run(name, func(t *testing.T) {
			key, err := s.Upload(ctx, strings.NewReader("hello world"), "greeting.txt")
			require.NoError(t, err)
			require.NotEmpty(t, key)

			d, err := s.Download(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, int64(11), d.Length)
			assert.Equal(t, "hello world", readAll(t, d))

			r, err := s.DownloadRange(ctx, key, 6, 10)
			require.NoError(t, err)
			assert.Equal(t, int64(11), r.Length, "length is the full object length")
			assert.Equal(t, "world", readAll(t, r))

			clamped, err := s.DownloadRange(ctx, key, 6, 100)
			require.NoError(t, err)
			assert.Equal(t, "world", readAll(t, clamped))

			require.NoError(t, s.Delete(ctx, key))
			require.NoError(t, s.Delete(ctx, key), "deleting an absent key is a no-op")

			_, err = s.Download(ctx, key)
			require.ErrorIs(t, err, common.ErrorNotFound)
		})
	}
}

func TestStores_UploadSized(t *testing.T) {
	ctx := context.Background()

	for name, s := range localStores(t) {
		t.Run(name, func(t *testing.T) {
			key, err := s.UploadSized(ctx, strings.NewReader("abc"), "a", 3)
			require.NoError(t, err)

			d, err := s.Download(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "abc", readAll(t, d))

			_, err = s.UploadSized(ctx, strings.NewReader("abc"), "a", 4)
			require.ErrorIs(t, err, common.ErrorInvalidArgument)
		})
	}
}

func TestStores_DeleteMany(t *testing.T) {
	ctx := context.Background()

	for name, s := range localStores(t) {
		t.Run(name, func(t *testing.T) {
			k1, err := s.Upload(ctx, strings.NewReader("1"), "one")
			require.NoError(t, err)
			k2, err := s.Upload(ctx, strings.NewReader("2"), "two")
			require.NoError(t, err)
			k3, err := s.Upload(ctx, strings.NewReader("3"), "three")
			require.NoError(t, err)

			require.NoError(t, s.DeleteMany(ctx, []string{k1, k2}))

			_, err = s.Download(ctx, k1)
			require.ErrorIs(t, err, common.ErrorNotFound)
			_, err = s.Download(ctx, k2)
			require.ErrorIs(t, err, common.ErrorNotFound)

			d, err := s.Download(ctx, k3)
			require.NoError(t, err)
			assert.Equal(t, "3", readAll(t, d))

			require.NoError(t, s.DeleteMany(ctx, nil))
		})
	}
}

func TestStores_BadRange(t *testing.T) {
	ctx := context.Background()

	for name, s := range localStores(t) {
		t.Run(name, func(t *testing.T) {
			key, err := s.Upload(ctx, strings.NewReader("abc"), "a")
			require.NoError(t, err)

			_, err = s.DownloadRange(ctx, key, 5, 6)
			require.ErrorIs(t, err, common.ErrorInvalidArgument)

			_, err = s.DownloadRange(ctx, key, 2, 1)
			require.ErrorIs(t, err, common.ErrorInvalidArgument)
		})
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestStores_ReaderFailureIsBackingError(t *testing.T) {
	ctx := context.Background()

	for name, s := range localStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Upload(ctx, brokenReader{}, "x")
			require.ErrorIs(t, err, common.ErrorBackingStore)
		})
	}
}

func TestStores_Kind(t *testing.T) {
	stores := localStores(t)
	assert.Equal(t, models.BackingMemory, stores["memory"].Kind())
	assert.Equal(t, models.BackingDisk, stores["disk"].Kind())
	assert.Equal(t, models.BackingBadger, stores["badger"].Kind())
}

func TestBlobName_IsUniqueAndSanitized(t *testing.T) {
	a, b := blobName("../x y.txt"), blobName("../x y.txt")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "xy.txt-"), a)
	assert.NotContains(t, a, "/")
}
