// Package binlog turns a MySQL row-based replication stream into row changes.
package binlog

import (
	"time"

	"github.com/sultanlodh/Stream/internal/position"
)

// Action is the kind of row change.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change is one rows event restricted to a single table. For updates Rows holds the
// after images and Before the matching before images.
type Change struct {
	Schema    string
	Table     string
	Action    Action
	Columns   []string
	Rows      []Row
	Before    []Row
	Position  position.Position
	Timestamp time.Time
}

// Event is what Stream.Next yields: either a Change, or a Commit marker carrying the
// position right after a committed transaction.
type Event struct {
	Change   *Change
	Commit   bool
	Position position.Position
}
