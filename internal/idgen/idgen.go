// Package idgen generates time-ordered run identifiers, adapted from
// relay/common/id/snowflake.go's package-level Snowflake node.
package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID. Safe to
// call more than once; only the first call takes effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// NewRunID generates a new globally unique run identifier. Init must
// have been called first; a process that never calls Init and calls
// NewRunID anyway will panic on a nil node, the same contract the
// teacher's id package carries.
func NewRunID() string {
	return node.Generate().String()
}
