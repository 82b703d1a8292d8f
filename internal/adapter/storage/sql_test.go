package storage_test

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/niksmo/inventory/internal/adapter/storage"
	"github.com/niksmo/inventory/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	upsertQuery = regexp.QuoteMeta("INSERT INTO snapshots (key, payload, updated_at)")
	selectQuery = regexp.QuoteMeta("SELECT payload FROM snapshots WHERE key = $1;")
)

func newSQLStorage(t *testing.T, opts ...storage.Opt) (storage.SQLStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectPing()
	s, err := storage.NewSQLStorageWithDB(t.Context(), db, opts...)
	require.NoError(t, err)
	return s, mock
}

func TestSQLStorage(t *testing.T) {
	t.Run("Save", func(t *testing.T) {
		s, mock := newSQLStorage(t, storage.KeyOpt("shop-1"))
		st := sampleState()
		data, err := storage.JSONCodec{}.Marshal(st)
		require.NoError(t, err)

		mock.ExpectExec(upsertQuery).
			WithArgs("shop-1", data).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.SaveSnapshot(t.Context(), st))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SaveFails", func(t *testing.T) {
		s, mock := newSQLStorage(t)
		mock.ExpectExec(upsertQuery).WillReturnError(errors.New("connection reset"))

		err := s.SaveSnapshot(t.Context(), sampleState())
		assert.ErrorContains(t, err, "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Load", func(t *testing.T) {
		s, mock := newSQLStorage(t, storage.CodecOpt(storage.NewAvroCodec()))
		st := sampleState()
		data, err := storage.NewAvroCodec().Marshal(st)
		require.NoError(t, err)

		mock.ExpectQuery(selectQuery).
			WithArgs(storage.DefaultKey).
			WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(data))

		got, err := s.LoadSnapshot(t.Context())
		require.NoError(t, err)
		assert.Equal(t, st.Durable(), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		s, mock := newSQLStorage(t)
		mock.ExpectQuery(selectQuery).
			WithArgs(storage.DefaultKey).
			WillReturnRows(sqlmock.NewRows([]string{"payload"}))

		_, err := s.LoadSnapshot(t.Context())
		assert.ErrorIs(t, err, port.ErrNoSnapshot)
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		s, mock := newSQLStorage(t)
		mock.ExpectQuery(selectQuery).
			WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte("{")))

		_, err := s.LoadSnapshot(t.Context())
		require.Error(t, err)
		assert.NotErrorIs(t, err, port.ErrNoSnapshot)
	})

	t.Run("QueryFails", func(t *testing.T) {
		s, mock := newSQLStorage(t)
		mock.ExpectQuery(selectQuery).WillReturnError(errors.New("relation does not exist"))

		_, err := s.LoadSnapshot(t.Context())
		assert.ErrorContains(t, err, "relation does not exist")
		assert.NotErrorIs(t, err, port.ErrNoSnapshot)
	})

	t.Run("Close", func(t *testing.T) {
		s, mock := newSQLStorage(t)
		mock.ExpectClose()

		s.Close()
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNewSQLStorageWithDB(t *testing.T) {
	t.Run("PingRetried", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("starting up"))
		mock.ExpectPing()

		_, err = storage.NewSQLStorageWithDB(t.Context(), db, storage.OpenAttemptsOpt(2))
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PingFails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		_, err = storage.NewSQLStorageWithDB(t.Context(), db, storage.OpenAttemptsOpt(1))
		assert.ErrorContains(t, err, "database unavailable")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidOpts", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		_, err = storage.NewSQLStorageWithDB(t.Context(), db, storage.KeyOpt(""))
		assert.Error(t, err)
	})
}
