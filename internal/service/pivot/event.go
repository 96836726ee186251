package pivot

import (
	"strconv"
	"time"

	"github.com/sultanlodh/Stream/internal/position"
)

// EventPivotChanged is the value of the "event" header on change feed messages.
const EventPivotChanged = "pivot.changed"

// PivotChangedEvent is published after a pivot row was written or removed.
type PivotChangedEvent struct {
	OrderID  int64             `json:"orderId"`
	Action   string            `json:"action"`
	Source   string            `json:"source"`
	Status   string            `json:"status,omitempty"`
	Position position.Position `json:"position"`
	At       time.Time         `json:"at"`
}

// Key partitions the feed by order so events of one order stay ordered.
func (e PivotChangedEvent) Key() []byte {
	return []byte("order-" + strconv.FormatInt(e.OrderID, 10))
}

// Removed reports whether the pivot row no longer exists after this event.
func (e PivotChangedEvent) Removed() bool {
	return e.Action == "delete"
}
