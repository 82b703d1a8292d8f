package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/niksmo/inventory/internal/adapter/storage"
	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
)

func sampleState() domain.ProductsState {
	return domain.ProductsState{
		Products: []domain.Product{
			{ID: 1, Title: "Backpack", Price: 109.95, Description: "pack",
				Category: "men's clothing", Image: "https://img/1.jpg",
				Rating: domain.Rating{Rate: 3.9, Count: 120}},
			{ID: 1700000000001, Title: "Lamp", Price: 20, Category: "electronics",
				Rating: domain.DefaultRating},
		},
		Loading:          true,
		Error:            "Failed to fetch products",
		SearchTerm:       "pack",
		SelectedCategory: "men's clothing",
		SortBy:           domain.SortByPrice,
		SortOrder:        domain.Desc,
	}
}

func TestCodecs(t *testing.T) {
	for _, name := range []string{"json", "avro"} {
		t.Run(name, func(t *testing.T) {
			c, err := storage.CodecByName(name)
			require.NoError(t, err)

			data, err := c.Marshal(sampleState())
			require.NoError(t, err)

			got, err := c.Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, sampleState().Durable(), got)
			assert.False(t, got.Loading)
			assert.Empty(t, got.Error)
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		_, err := storage.CodecByName("xml")
		assert.Error(t, err)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, err := storage.JSONCodec{}.Unmarshal([]byte(`{"products": 5}`))
		assert.Error(t, err)
	})

	t.Run("UnknownSortKey", func(t *testing.T) {
		_, err := storage.JSONCodec{}.Unmarshal([]byte(`{"products":[],"sortBy":"weight"}`))
		assert.ErrorContains(t, err, "malformed snapshot")
	})

	t.Run("MissingSortDefaults", func(t *testing.T) {
		got, err := storage.JSONCodec{}.Unmarshal([]byte(`{"products":[]}`))
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultState(), got)
	})

	t.Run("MalformedAvro", func(t *testing.T) {
		_, err := storage.NewAvroCodec().Unmarshal([]byte{0xff, 0xff, 0xff})
		assert.Error(t, err)
	})
}

func TestLevelDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")

	t.Run("NotFound", func(t *testing.T) {
		db, err := storage.OpenLevelDB(t.Context(), path)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.LoadSnapshot(t.Context())
		assert.ErrorIs(t, err, port.ErrNoSnapshot)
	})

	t.Run("SurvivesReopen", func(t *testing.T) {
		db, err := storage.OpenLevelDB(t.Context(), path,
			storage.CodecOpt(storage.NewAvroCodec()))
		require.NoError(t, err)
		require.NoError(t, db.SaveSnapshot(t.Context(), sampleState()))
		db.Close()

		db, err = storage.OpenLevelDB(t.Context(), path,
			storage.CodecOpt(storage.NewAvroCodec()))
		require.NoError(t, err)
		defer db.Close()

		got, err := db.LoadSnapshot(t.Context())
		require.NoError(t, err)
		assert.Equal(t, sampleState().Durable(), got)
	})

	t.Run("KeysAreNamespaced", func(t *testing.T) {
		db, err := storage.OpenLevelDB(t.Context(), path, storage.KeyOpt("other"))
		require.NoError(t, err)
		defer db.Close()

		_, err = db.LoadSnapshot(t.Context())
		assert.ErrorIs(t, err, port.ErrNoSnapshot)
	})

	t.Run("Malformed", func(t *testing.T) {
		raw, err := leveldb.OpenFile(path, nil)
		require.NoError(t, err)
		require.NoError(t, raw.Put([]byte(storage.DefaultKey), []byte("{not json"), nil))
		require.NoError(t, raw.Close())

		db, err := storage.OpenLevelDB(t.Context(), path)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.LoadSnapshot(t.Context())
		require.Error(t, err)
		assert.NotErrorIs(t, err, port.ErrNoSnapshot)
	})

	t.Run("InvalidOpts", func(t *testing.T) {
		_, err := storage.OpenLevelDB(t.Context(), path, storage.KeyOpt(""))
		assert.Error(t, err)
		_, err = storage.OpenLevelDB(t.Context(), path, storage.OpenAttemptsOpt(0))
		assert.Error(t, err)
	})
}
