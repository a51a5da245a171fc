package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestStore_Get(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery(`SELECT value FROM cart_snapshots WHERE key = \$1`).
		WithArgs("storefront_cart:s1").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{"items":[]}`)))

	got, err := store.Get(context.Background(), "storefront_cart:s1")

	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_NotFound(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery(`SELECT value FROM cart_snapshots`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_QueryError(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery(`SELECT value FROM cart_snapshots`).
		WithArgs("k").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "k")

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "get cart snapshot")
}

func TestStore_Set(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	value := []byte(`{"items":[{"product_id":"A","quantity":1}]}`)
	mock.ExpectExec(`(?s)INSERT INTO cart_snapshots.*ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("k", value).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Set(context.Background(), "k", value))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Set_Error(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectExec(`INSERT INTO cart_snapshots`).
		WithArgs("k", []byte("{}")).
		WillReturnError(errors.New("disk full"))

	err := store.Set(context.Background(), "k", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert cart snapshot: disk full")
}

func TestStore_Delete(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectExec(`DELETE FROM cart_snapshots WHERE key = \$1`).
		WithArgs("k").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.Delete(context.Background(), "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AppliesEmbeddedFiles(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("000001_create_cart_snapshots.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS cart_snapshots`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs("000001_create_cart_snapshots.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), mock, logger.Discard()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
