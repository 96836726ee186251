package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatusEvent is a row of table2, the append-only status history of an order.
type OrderStatusEvent struct {
	bun.BaseModel `bun:"table:table2,alias:s"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	OrderID     int64     `bun:"orderId,notnull" json:"orderId"`
	OrderStatus Status    `bun:"orderStatus,notnull" json:"orderStatus"`
	AddDate     time.Time `bun:"addDate,type:date,nullzero" json:"addDate"`
}
