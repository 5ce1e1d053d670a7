package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockSQLStore(t *testing.T, dialect Dialect, pageSize int) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ig_objects").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLStore(context.Background(), db, dialect, pageSize)
	require.NoError(t, err)
	return s, mock
}

func TestSQLStore_ListKeysPages(t *testing.T) {
	s, mock := newMockSQLStore(t, SQLite, 2)
	query := regexp.QuoteMeta(`SELECT object_key FROM ig_objects WHERE object_key > ? ORDER BY object_key LIMIT ?`)

	mock.ExpectQuery(query).WithArgs("", 2).
		WillReturnRows(sqlmock.NewRows([]string{"object_key"}).AddRow("a.json").AddRow("b.json"))
	mock.ExpectQuery(query).WithArgs("b.json", 2).
		WillReturnRows(sqlmock.NewRows([]string{"object_key"}).AddRow("c.json"))

	keys, err := s.ListKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json", "c.json"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresPlaceholders(t *testing.T) {
	s, mock := newMockSQLStore(t, Postgres, 10)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT content FROM ig_objects WHERE object_key = $1`)).
		WithArgs("us-core/a.json").
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow([]byte(`{"a":1}`)))

	data, err := s.Get(context.Background(), "us-core/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetMissing(t *testing.T) {
	s, mock := newMockSQLStore(t, SQLite, 10)

	mock.ExpectQuery("SELECT content FROM ig_objects").
		WithArgs("nope.json").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "nope.json")
	assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestSQLStore_PutUpserts(t *testing.T) {
	s, mock := newMockSQLStore(t, SQLite, 10)

	mock.ExpectExec("INSERT INTO ig_objects").
		WithArgs("a.json", []byte("A"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Put(context.Background(), "a.json", []byte("A")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_DeleteWrapsError(t *testing.T) {
	s, mock := newMockSQLStore(t, SQLite, 10)

	mock.ExpectExec("DELETE FROM ig_objects").
		WithArgs("a.json").
		WillReturnError(errors.New("database is locked"))

	err := s.Delete(context.Background(), "a.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sql delete failed for a.json")
	assert.Contains(t, err.Error(), "database is locked")
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("postgresql")
	require.NoError(t, err)
	assert.Equal(t, "$3", d.Placeholder(3))

	d, err = DialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "?", d.Placeholder(3))

	_, err = DialectFor("mysql")
	require.Error(t, err)
}

func TestOpenSQLStore_SQLiteFile(t *testing.T) {
	s, err := OpenSQLStore(context.Background(), SQLStoreConfig{
		Driver:   "sqlite",
		DSN:      t.TempDir() + "/igs.db",
		PageSize: 2,
	})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	exerciseStore(t, s)
}
