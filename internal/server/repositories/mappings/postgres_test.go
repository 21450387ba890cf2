package mappings

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mappingColumns = []string{"file_id", "lifecycle", "backing_kind", "physical_key", "sha256", "sha512", "size_bytes", "tombstoned", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

func sampleRow(id uuid.UUID, key string, tomb bool, at time.Time) []driver.Value {
	return []driver.Value{id.String(), "ephemeral", "s3", key, "h256", "h512", int64(5), tomb, at}
}

func TestFindByHashes_ExcludesTombstonedAndOrders(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	id1, id2 := uuid.New(), uuid.New()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(mappingColumns).
		AddRow(sampleRow(id1, "k1", false, t0)...).
		AddRow(sampleRow(id2, "k2", false, t0.Add(time.Second))...)

	q := `(?s)SELECT .* FROM file_mappings\s+WHERE sha256 = \$1 AND sha512 = \$2 AND NOT tombstoned\s+ORDER BY created_at, file_id`
	mock.ExpectQuery(q).WithArgs("h256", "h512").WillReturnRows(rows)

	got, err := repo.FindByHashes(context.Background(), "h256", "h512")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, id1, got[0].FileID)
	assert.Equal(t, models.Ephemeral, got[0].Lifecycle)
	assert.Equal(t, models.BackingS3, got[0].BackingKind)
	assert.Equal(t, "k1", got[0].PhysicalKey)
	assert.Equal(t, int64(5), got[0].SizeBytes)
	assert.Equal(t, t0, got[0].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByHashes_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM file_mappings`).WillReturnError(errors.New("db down"))

	_, err := repo.FindByHashes(context.Background(), "a", "b")
	if err == nil || !regexp.MustCompile(`failed to select mappings: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		id := uuid.New()

		mock.ExpectQuery(`(?s)SELECT .* FROM file_mappings\s+WHERE file_id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(mappingColumns).AddRow(sampleRow(id, "k", true, time.Now())...))

		got, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, got.FileID)
		assert.True(t, got.Tombstoned)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)

		mock.ExpectQuery(`SELECT .* FROM file_mappings`).WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByID(context.Background(), uuid.New())
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)

		mock.ExpectQuery(`SELECT .* FROM file_mappings`).WillReturnError(errors.New("boom"))

		_, err := repo.FindByID(context.Background(), uuid.New())
		require.Error(t, err)
		require.NotErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestFindAllByID_BuildsInList(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`(?s)WHERE file_id IN \(\$1, \$2\)`).
		WithArgs(a, b).
		WillReturnRows(sqlmock.NewRows(mappingColumns).AddRow(sampleRow(a, "k", false, time.Now())...))

	got, err := repo.FindAllByID(context.Background(), []uuid.UUID{a, b})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAllByID_EmptyDoesNotQuery(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	got, err := repo.FindAllByID(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTombstonedPage(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)WHERE tombstoned\s+ORDER BY created_at, file_id\s+LIMIT \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(mappingColumns).AddRow(sampleRow(uuid.New(), "k", true, time.Now())...))

	got, err := repo.FindTombstonedPage(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, mock.ExpectationsWereMet())

	none, err := repo.FindTombstonedPage(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestFindByPhysicalKeyAndLifecycle(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE physical_key = \$1`).WithArgs("k").
		WillReturnRows(sqlmock.NewRows(mappingColumns))
	mock.ExpectQuery(`WHERE lifecycle = \$1`).WithArgs("ephemeral").
		WillReturnRows(sqlmock.NewRows(mappingColumns).AddRow(sampleRow(uuid.New(), "k", false, time.Now())...))

	byKey, err := repo.FindByPhysicalKey(context.Background(), "k")
	require.NoError(t, err)
	require.Empty(t, byKey)

	byLifecycle, err := repo.FindByLifecycle(context.Background(), models.Ephemeral)
	require.NoError(t, err)
	require.Len(t, byLifecycle, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFind_ScanError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE physical_key`).
		WillReturnRows(sqlmock.NewRows([]string{"file_id"}).AddRow("not-enough-columns"))

	_, err := repo.FindByPhysicalKey(context.Background(), "k")
	require.Error(t, err)
}

func TestSave_UpsertsAndReadsCreatedAt(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	m := &models.FileMapping{
		FileID: uuid.New(), Lifecycle: models.Permanent, BackingKind: models.BackingDisk,
		PhysicalKey: "k", SHA256: "a", SHA512: "b", SizeBytes: 7,
	}
	at := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)

	q := `(?s)^INSERT\s+INTO\s+file_mappings\b.*ON\s+CONFLICT\s*\(file_id\)\s*DO\s+UPDATE\s+SET\s+tombstoned\s*=\s*EXCLUDED\.tombstoned\s+RETURNING\s+created_at$`
	mock.ExpectQuery(q).
		WithArgs(m.FileID, "permanent", "disk", "k", "a", "b", int64(7), false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(at))

	require.NoError(t, repo.Save(context.Background(), m))
	assert.Equal(t, at, m.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO file_mappings`).WillReturnError(errors.New("db down"))

	err := repo.Save(context.Background(), &models.FileMapping{FileID: uuid.New()})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestSaveAll_RunsInTransaction(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	ms := []*models.FileMapping{{FileID: uuid.New()}, {FileID: uuid.New()}}

	mock.ExpectBegin()
	for range ms {
		mock.ExpectQuery(`INSERT INTO file_mappings`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.SaveAll(context.Background(), ms))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAll_RollsBackOnError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	ms := []*models.FileMapping{{FileID: uuid.New()}, {FileID: uuid.New()}}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO file_mappings`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectQuery(`INSERT INTO file_mappings`).WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	require.Error(t, repo.SaveAll(context.Background(), ms))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAll_Empty(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	require.NoError(t, repo.SaveAll(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAll(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectExec(`^DELETE FROM file_mappings WHERE file_id IN \(\$1, \$2\)$`).
		WithArgs(a, b).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.DeleteAll(context.Background(), []*models.FileMapping{{FileID: a}, {FileID: b}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.NoError(t, repo.DeleteAll(context.Background(), nil))
}

func TestDeleteAll_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM file_mappings`).WillReturnError(errors.New("db down"))

	err := repo.DeleteAll(context.Background(), []*models.FileMapping{{FileID: uuid.New()}})
	require.ErrorContains(t, err, "failed to delete mappings")
}

func TestDeleteAllByPhysicalKeyIn(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`^DELETE FROM file_mappings WHERE physical_key IN \(\$1, \$2, \$3\)$`).
		WithArgs("a", "b", "c").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteAllByPhysicalKeyIn(context.Background(), []string{"a", "b", "c"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "$1", placeholders(1))
	assert.Equal(t, "$1, $2, $3", placeholders(3))
}
