package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	getSnapshotSQL    = `SELECT value FROM cart_snapshots WHERE key = $1`
	upsertSnapshotSQL = `INSERT INTO cart_snapshots (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	deleteSnapshotSQL = `DELETE FROM cart_snapshots WHERE key = $1`
)

// Store implements repository.KeyValueStore on a cart_snapshots table.
type Store struct {
	db database.DBTX
}

// NewStore creates a PostgreSQL-backed store.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

// Migrate creates the cart_snapshots table if needed.
func Migrate(ctx context.Context, db database.DBTX, logger *slog.Logger) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	return database.RunMigrations(ctx, db, sub, logger)
}

// Get returns the snapshot stored under key.
func (s *Store) Get(ctx context.Context, key string) (_ []byte, err error) {
	ctx, end := database.TraceQuery(ctx, "GetCartSnapshot", getSnapshotSQL)
	defer func() { end(err) }()

	var value []byte
	if err = s.db.QueryRow(ctx, getSnapshotSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("cart snapshot", key)
		}
		return nil, fmt.Errorf("get cart snapshot: %w", err)
	}
	return value, nil
}

// Set upserts the snapshot for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpsertCartSnapshot", upsertSnapshotSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, upsertSnapshotSQL, key, value); err != nil {
		return fmt.Errorf("upsert cart snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot for key.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteCartSnapshot", deleteSnapshotSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, deleteSnapshotSQL, key); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}
