package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/port"
	"github.com/niksmo/inventory/pkg/retry"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var _ port.SnapshotStorage = (*LevelDB)(nil)

// A LevelDB keeps the snapshot in a local LevelDB database.
type LevelDB struct {
	db    *leveldb.DB
	key   []byte
	codec Codec
}

// OpenLevelDB opens or creates the database at path. Opening is retried
// while another process holds the database lock.
func OpenLevelDB(ctx context.Context, path string, opts ...Opt) (LevelDB, error) {
	const op = "OpenLevelDB"
	log := slog.With("op", op)

	options, err := applyOpts(opts)
	if err != nil {
		return LevelDB{}, fmt.Errorf("%s: %w", op, err)
	}

	retryCfg := retry.RetryConfig{
		MaxAttempts: options.openAttempts,
		Backoff:     retry.LineareBackoff(200 * time.Millisecond),
		ShouldRetry: isLocked,
	}

	db, err := retry.DoWithResult(ctx, retryCfg, func() (*leveldb.DB, error) {
		return leveldb.OpenFile(path, nil)
	})
	if err != nil {
		return LevelDB{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("leveldb is open", "path", path)
	return LevelDB{db, []byte(options.key), options.codec}, nil
}

func isLocked(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

func (s LevelDB) SaveSnapshot(ctx context.Context, st domain.ProductsState) error {
	const op = "LevelDB.SaveSnapshot"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	data, err := s.codec.Marshal(st)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.db.Put(s.key, data, &opt.WriteOptions{Sync: true})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s LevelDB) LoadSnapshot(ctx context.Context) (domain.ProductsState, error) {
	const op = "LevelDB.LoadSnapshot"

	if err := ctx.Err(); err != nil {
		return domain.ProductsState{}, fmt.Errorf("%s: %w", op, err)
	}

	data, err := s.db.Get(s.key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
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

func (s LevelDB) Close() {
	const op = "LevelDB.Close"
	log := slog.With("op", op)

	log.Info("closing leveldb...")
	if err := s.db.Close(); err != nil {
		log.Error("failed to close", "err", err)
		return
	}
	log.Info("leveldb is closed")
}
