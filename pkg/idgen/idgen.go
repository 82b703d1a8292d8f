package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// A Snowflake generates time ordered int64 identifiers unique per node.
type Snowflake struct {
	node *snowflake.Node
}

func NewSnowflake(nodeID int64) (Snowflake, error) {
	const op = "NewSnowflake"

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return Snowflake{}, fmt.Errorf("%s: %w", op, err)
	}
	return Snowflake{node}, nil
}

func (s Snowflake) NextID() int64 {
	return s.node.Generate().Int64()
}

var (
	defaultOnce sync.Once
	defaultGen  Snowflake
)

// Default returns a generator bound to node 0.
func Default() Snowflake {
	defaultOnce.Do(func() {
		g, err := NewSnowflake(0)
		if err != nil {
			panic(err) // node 0 is always in range
		}
		defaultGen = g
	})
	return defaultGen
}
