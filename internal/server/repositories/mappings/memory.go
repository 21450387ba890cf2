package mappings

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps mappings in a map. Rows are copied on the way in
// and out so callers never share memory with the store.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*models.FileMapping
	now  func() time.Time
	last time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows: make(map[uuid.UUID]*models.FileMapping),
		now:  time.Now,
	}
}

func (r *MemoryRepository) FindByHashes(_ context.Context, sha256, sha512 string) ([]*models.FileMapping, error) {
	return r.filter(func(m *models.FileMapping) bool {
		return !m.Tombstoned && m.SHA256 == sha256 && m.SHA512 == sha512
	}, 0), nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*models.FileMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *m
	return &c, nil
}

func (r *MemoryRepository) FindAllByID(_ context.Context, ids []uuid.UUID) ([]*models.FileMapping, error) {
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.filter(func(m *models.FileMapping) bool {
		_, ok := want[m.FileID]
		return ok
	}, 0), nil
}

func (r *MemoryRepository) FindTombstonedPage(_ context.Context, pageSize int) ([]*models.FileMapping, error) {
	if pageSize <= 0 {
		return nil, nil
	}
	return r.filter(func(m *models.FileMapping) bool { return m.Tombstoned }, pageSize), nil
}

func (r *MemoryRepository) FindByPhysicalKey(_ context.Context, key string) ([]*models.FileMapping, error) {
	return r.filter(func(m *models.FileMapping) bool { return m.PhysicalKey == key }, 0), nil
}

func (r *MemoryRepository) FindByLifecycle(_ context.Context, l models.Lifecycle) ([]*models.FileMapping, error) {
	return r.filter(func(m *models.FileMapping) bool { return m.Lifecycle == l }, 0), nil
}

func (r *MemoryRepository) Save(_ context.Context, m *models.FileMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveLocked(m)
	return nil
}

func (r *MemoryRepository) SaveAll(_ context.Context, ms []*models.FileMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range ms {
		r.saveLocked(m)
	}
	return nil
}

func (r *MemoryRepository) DeleteAll(_ context.Context, ms []*models.FileMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range ms {
		delete(r.rows, m.FileID)
	}
	return nil
}

func (r *MemoryRepository) DeleteAllByPhysicalKeyIn(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.rows {
		if slices.Contains(keys, m.PhysicalKey) {
			delete(r.rows, id)
		}
	}
	return nil
}

// saveLocked mirrors the SQL upsert: an existing row only takes the new
// tombstone flag.
func (r *MemoryRepository) saveLocked(m *models.FileMapping) {
	if existing, ok := r.rows[m.FileID]; ok {
		existing.Tombstoned = m.Tombstoned
		m.CreatedAt = existing.CreatedAt
		return
	}
	c := *m
	c.CreatedAt = r.now()
	if !c.CreatedAt.After(r.last) {
		// keep insertion order strict even when the clock does not advance
		c.CreatedAt = r.last.Add(time.Nanosecond)
	}
	r.last = c.CreatedAt
	r.rows[m.FileID] = &c
	m.CreatedAt = c.CreatedAt
}

// filter returns copies of matching rows ordered by (CreatedAt, FileID),
// truncated to limit when limit > 0.
func (r *MemoryRepository) filter(keep func(*models.FileMapping) bool, limit int) []*models.FileMapping {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.FileMapping
	for _, m := range r.rows {
		if keep(m) {
			c := *m
			out = append(out, &c)
		}
	}

	slices.SortFunc(out, func(a, b *models.FileMapping) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.FileID[:], b.FileID[:])
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
