package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Source and projection table names.
const (
	OrdersTable      = "table1"
	OrderStatusTable = "table2"
	OrderPivotTable  = "table3"
	orderDateLayout  = "2006-01-02"
)

// Order is a row of table1: one purchase order.
type Order struct {
	bun.BaseModel `bun:"table:table1,alias:o"`

	OrderID      int64     `bun:"orderId,pk" json:"orderId"`
	OrderItem    *string   `bun:"orderItem" json:"orderItem"`
	CustomerName *string   `bun:"customerName" json:"customerName"`
	OrderDate    time.Time `bun:"orderDate,type:date,nullzero" json:"orderDate"`
}

// StringPtr returns a pointer to s, for the nullable text columns.
func StringPtr(s string) *string {
	return &s
}

// OrderDateString renders the order date the way MySQL prints DATE values.
func (o *Order) OrderDateString() string {
	if o.OrderDate.IsZero() {
		return ""
	}
	return o.OrderDate.Format(orderDateLayout)
}
