package mappings

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMapping(l models.Lifecycle, key, h string) *models.FileMapping {
	return &models.FileMapping{
		FileID:      uuid.New(),
		Lifecycle:   l,
		BackingKind: models.BackingMemory,
		PhysicalKey: key,
		SHA256:      h + "-256",
		SHA512:      h + "-512",
		SizeBytes:   3,
	}
}

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	m := newMapping(models.Permanent, "k1", "abc")
	require.NoError(t, r.Save(ctx, m))
	assert.False(t, m.CreatedAt.IsZero(), "created_at is assigned on insert")

	got, err := r.FindByID(ctx, m.FileID)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	got.PhysicalKey = "mutated"
	again, err := r.FindByID(ctx, m.FileID)
	require.NoError(t, err)
	assert.Equal(t, "k1", again.PhysicalKey, "returned rows are copies")

	_, err = r.FindByID(ctx, uuid.New())
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_FindByHashes_OrderAndTombstones(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	first := newMapping(models.Ephemeral, "k1", "same")
	second := newMapping(models.Permanent, "k1", "same")
	dead := newMapping(models.Ephemeral, "k1", "same")
	dead.Tombstoned = true
	other := newMapping(models.Permanent, "k2", "other")

	require.NoError(t, r.SaveAll(ctx, []*models.FileMapping{first, second, dead, other}))

	got, err := r.FindByHashes(ctx, "same-256", "same-512")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.FileID, got[0].FileID, "oldest first even with a frozen clock")
	assert.Equal(t, second.FileID, got[1].FileID)
}

func TestMemoryRepository_SaveExistingOnlyUpdatesTombstone(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	m := newMapping(models.Ephemeral, "k1", "abc")
	require.NoError(t, r.Save(ctx, m))

	update := *m
	update.PhysicalKey = "other"
	update.Tombstoned = true
	require.NoError(t, r.Save(ctx, &update))

	got, err := r.FindByID(ctx, m.FileID)
	require.NoError(t, err)
	assert.True(t, got.Tombstoned)
	assert.Equal(t, "k1", got.PhysicalKey)
}

func TestMemoryRepository_PagesAndDeletes(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	var tomb []*models.FileMapping
	for i := 0; i < 5; i++ {
		m := newMapping(models.Ephemeral, "shared", "x")
		m.Tombstoned = true
		tomb = append(tomb, m)
	}
	live := newMapping(models.Permanent, "shared", "x")
	require.NoError(t, r.SaveAll(ctx, append(tomb, live)))

	page, err := r.FindTombstonedPage(ctx, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, tomb[0].FileID, page[0].FileID)

	byKey, err := r.FindByPhysicalKey(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, byKey, 6)

	eph, err := r.FindByLifecycle(ctx, models.Ephemeral)
	require.NoError(t, err)
	assert.Len(t, eph, 5)

	byID, err := r.FindAllByID(ctx, []uuid.UUID{live.FileID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, byID, 1)

	require.NoError(t, r.DeleteAll(ctx, page))
	byKey, err = r.FindByPhysicalKey(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, byKey, 3)

	require.NoError(t, r.DeleteAllByPhysicalKeyIn(ctx, []string{"shared"}))
	byKey, err = r.FindByPhysicalKey(ctx, "shared")
	require.NoError(t, err)
	assert.Empty(t, byKey)

	empty, err := r.FindTombstonedPage(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
