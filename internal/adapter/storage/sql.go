package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/port"
	"github.com/niksmo/inventory/pkg/retry"
)

const pingBackoff = 200 * time.Millisecond

var _ port.SnapshotStorage = (*SQLStorage)(nil)

type sqldb interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PingContext(ctx context.Context) error
	Close() error
}

// A SQLStorage keeps the snapshot in the snapshots table of a PostgreSQL
// database. The table is created by cmd/migrator.
type SQLStorage struct {
	sqldb sqldb
	key   string
	codec Codec
}

func NewSQLStorage(ctx context.Context, dsn string, opts ...Opt) (SQLStorage, error) {
	const op = "NewSQLStorage"

	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return SQLStorage{}, fmt.Errorf("%s: %w", op, err)
	}
	connStr := stdlib.RegisterConnConfig(connConfig)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return SQLStorage{}, fmt.Errorf("%s: %w", op, err)
	}

	s, err := NewSQLStorageWithDB(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return SQLStorage{}, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// NewSQLStorageWithDB uses an already opened database. The database is
// pinged up to the configured open attempts before it is used.
func NewSQLStorageWithDB(ctx context.Context, db *sql.DB, opts ...Opt) (SQLStorage, error) {
	options, err := applyOpts(opts)
	if err != nil {
		return SQLStorage{}, err
	}

	s := SQLStorage{db, options.key, options.codec}
	retryCfg := retry.RetryConfig{
		MaxAttempts: options.openAttempts,
		Backoff:     retry.LineareBackoff(pingBackoff),
	}
	if err := retry.Do(ctx, retryCfg, func() error { return s.ping(ctx) }); err != nil {
		return SQLStorage{}, err
	}
	return s, nil
}

func (s SQLStorage) ping(ctx context.Context) error {
	const op = "SQLStorage.ping"
	if err := s.sqldb.PingContext(ctx); err != nil {
		slog.Warn("database unavailable", "op", op, "err", err)
		return fmt.Errorf("%s: database unavailable: %w", op, err)
	}
	slog.Info("database is available", "op", op)
	return nil
}

func (s SQLStorage) SaveSnapshot(ctx context.Context, st domain.ProductsState) error {
	const op = "SQLStorage.SaveSnapshot"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	data, err := s.codec.Marshal(st)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO snapshots (key, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at;`

	if _, err := s.sqldb.ExecContext(ctx, query, s.key, data); err != nil {
		return fmt.Errorf("%s: failed to exec: %w", op, err)
	}
	return nil
}

func (s SQLStorage) LoadSnapshot(ctx context.Context) (domain.ProductsState, error) {
	const op = "SQLStorage.LoadSnapshot"

	if err := ctx.Err(); err != nil {
		return domain.ProductsState{}, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT payload FROM snapshots WHERE key = $1;`

	var data []byte
	err := s.sqldb.QueryRowContext(ctx, query, s.key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProductsState{}, fmt.Errorf("%s: %w", op, port.ErrNoSnapshot)
		}
		return domain.ProductsState{}, fmt.Errorf("%s: %w", op, err)
	}

	st, err := s.codec.Unmarshal(data)
	if err != nil {
		return domain.ProductsState{}, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

func (s SQLStorage) Close() {
	const op = "SQLStorage.Close"
	log := slog.With("op", op)

	log.Info("closing sql database...")

	if err := s.sqldb.Close(); err != nil {
		log.Error("failed to close", "err", err)
		return
	}
	log.Info("sql database is closed")
}
