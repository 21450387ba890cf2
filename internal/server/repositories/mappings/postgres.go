package mappings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/dbx"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/google/uuid"
)

const selectColumns = `SELECT file_id, lifecycle, backing_kind, physical_key, sha256, sha512, size_bytes, tombstoned, created_at
	FROM file_mappings`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByHashes(ctx context.Context, sha256, sha512 string) ([]*models.FileMapping, error) {
	query := selectColumns + `
		WHERE sha256 = $1 AND sha512 = $2 AND NOT tombstoned
		ORDER BY created_at, file_id`

	return r.query(ctx, query, sha256, sha512)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.FileMapping, error) {
	query := selectColumns + `
		WHERE file_id = $1`

	m, err := scanMapping(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select mapping: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]*models.FileMapping, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := selectColumns + `
		WHERE file_id IN (` + placeholders(len(ids)) + `)
		ORDER BY created_at, file_id`

	return r.query(ctx, query, args...)
}

func (r *PostgresRepository) FindTombstonedPage(ctx context.Context, pageSize int) ([]*models.FileMapping, error) {
	if pageSize <= 0 {
		return nil, nil
	}

	query := selectColumns + `
		WHERE tombstoned
		ORDER BY created_at, file_id
		LIMIT $1`

	return r.query(ctx, query, pageSize)
}

func (r *PostgresRepository) FindByPhysicalKey(ctx context.Context, key string) ([]*models.FileMapping, error) {
	query := selectColumns + `
		WHERE physical_key = $1
		ORDER BY created_at, file_id`

	return r.query(ctx, query, key)
}

func (r *PostgresRepository) FindByLifecycle(ctx context.Context, l models.Lifecycle) ([]*models.FileMapping, error) {
	query := selectColumns + `
		WHERE lifecycle = $1
		ORDER BY created_at, file_id`

	return r.query(ctx, query, string(l))
}

// Save upserts m. Only the tombstone flag is mutable once a row exists.
// CreatedAt is filled from the database.
func (r *PostgresRepository) Save(ctx context.Context, m *models.FileMapping) error {
	query := `INSERT INTO file_mappings (file_id, lifecycle, backing_kind, physical_key, sha256, sha512, size_bytes, tombstoned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (file_id)
		DO UPDATE SET tombstoned = EXCLUDED.tombstoned
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		m.FileID, string(m.Lifecycle), string(m.BackingKind), m.PhysicalKey,
		m.SHA256, m.SHA512, m.SizeBytes, m.Tombstoned,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SaveAll saves every row. When the repository is bound to a *sql.DB the
// rows are written in one transaction; when bound to a transaction the
// caller owns atomicity.
func (r *PostgresRepository) SaveAll(ctx context.Context, ms []*models.FileMapping) error {
	if len(ms) == 0 {
		return nil
	}

	return r.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewPostgresRepository(tx)
		for _, m := range ms {
			if err := repo.Save(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepository) DeleteAll(ctx context.Context, ms []*models.FileMapping) error {
	if len(ms) == 0 {
		return nil
	}

	args := make([]any, len(ms))
	for i, m := range ms {
		args[i] = m.FileID
	}

	query := `DELETE FROM file_mappings WHERE file_id IN (` + placeholders(len(ms)) + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete mappings: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllByPhysicalKeyIn(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	query := `DELETE FROM file_mappings WHERE physical_key IN (` + placeholders(len(keys)) + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete mappings: %w", err)
	}
	return nil
}

func (r *PostgresRepository) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if b, ok := r.db.(dbx.TxBeginner); ok {
		return dbx.WithTx(ctx, b, nil, fn)
	}
	return fn(ctx, r.db)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.FileMapping, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select mappings: %w", err)
	}
	defer rows.Close()

	var result []*models.FileMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMapping(s scanner) (*models.FileMapping, error) {
	var (
		m         models.FileMapping
		lifecycle string
		kind      string
	)
	err := s.Scan(&m.FileID, &lifecycle, &kind, &m.PhysicalKey, &m.SHA256, &m.SHA512, &m.SizeBytes, &m.Tombstoned, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Lifecycle = models.Lifecycle(lifecycle)
	m.BackingKind = models.BackingKind(kind)
	return &m, nil
}

// placeholders returns "$1, $2, ..., $n".
func placeholders(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}
