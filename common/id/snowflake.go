package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node. Each binary passes its own node ID
// (server 1, worker 2, combined 3) so ids never collide across processes
// writing to the same tables.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a time-ordered, globally unique int64. Used as the internal
// primary key on every row; public identifiers (event_id, task_id, lead_id)
// are separate.
func New() int64 {
	return node.Generate().Int64()
}
