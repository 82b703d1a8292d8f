package idgen_test

import (
	"testing"

	"github.com/niksmo/inventory/pkg/idgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflake(t *testing.T) {
	t.Run("NodeOutOfRange", func(t *testing.T) {
		_, err := idgen.NewSnowflake(1 << 20)
		assert.Error(t, err)
	})

	t.Run("UniqueAndIncreasing", func(t *testing.T) {
		g, err := idgen.NewSnowflake(7)
		require.NoError(t, err)

		var prev int64
		seen := make(map[int64]struct{})
		for range 1000 {
			id := g.NextID()
			require.Greater(t, id, prev)
			_, dup := seen[id]
			require.False(t, dup)
			seen[id] = struct{}{}
			prev = id
		}
	})

	t.Run("Default", func(t *testing.T) {
		assert.NotZero(t, idgen.Default().NextID())
	})
}
