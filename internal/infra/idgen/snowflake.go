package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"

	"ai-entitlement-service/internal/domain/ports/adapter"
)

var _ adapter.IDGen = (*SnowflakeGen)(nil)

// SnowflakeGen issues globally unique, roughly time-ordered 64-bit order ids.
// Each deployment gets its own worker node id from config.
type SnowflakeGen struct {
	node *snowflake.Node
}

func NewSnowflakeGen(nodeID int64) (*SnowflakeGen, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &SnowflakeGen{node: node}, nil
}

func (g *SnowflakeGen) NextID() int64 {
	return g.node.Generate().Int64()
}
