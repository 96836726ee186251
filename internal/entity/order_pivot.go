package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// StatusUnset is the default value of every orderStatusN column.
const StatusUnset = "0"

// OrderPivot is a row of table3: order attributes copied from table1 plus one column
// per status of table2.
type OrderPivot struct {
	bun.BaseModel `bun:"table:table3,alias:p"`

	ID           int64     `bun:"id,pk,autoincrement" json:"-"`
	OrderID      int64     `bun:"orderId,notnull,unique" json:"orderId"`
	OrderItem    *string   `bun:"orderItem" json:"orderItem"`
	CustomerName *string   `bun:"customerName" json:"customerName"`
	OrderDate    time.Time `bun:"orderDate,type:date,nullzero" json:"orderDate"`
	OrderStatus1 string    `bun:"orderStatus1,default:'0'" json:"orderStatus1"`
	OrderStatus2 string    `bun:"orderStatus2,default:'0'" json:"orderStatus2"`
	OrderStatus3 string    `bun:"orderStatus3,default:'0'" json:"orderStatus3"`
	OrderStatus4 string    `bun:"orderStatus4,default:'0'" json:"orderStatus4"`
	OrderStatus5 string    `bun:"orderStatus5,default:'0'" json:"orderStatus5"`
}

// PivotFromOrder copies the order attributes into a pivot row with unset statuses.
func PivotFromOrder(o Order) OrderPivot {
	return OrderPivot{
		OrderID:      o.OrderID,
		OrderItem:    o.OrderItem,
		CustomerName: o.CustomerName,
		OrderDate:    o.OrderDate,
		OrderStatus1: StatusUnset,
		OrderStatus2: StatusUnset,
		OrderStatus3: StatusUnset,
		OrderStatus4: StatusUnset,
		OrderStatus5: StatusUnset,
	}
}

// Statuses returns the status columns keyed by status.
func (p *OrderPivot) Statuses() map[Status]string {
	return map[Status]string{
		StatusOrdered:        p.OrderStatus1,
		StatusProcessing:     p.OrderStatus2,
		StatusShipped:        p.OrderStatus3,
		StatusOutForDelivery: p.OrderStatus4,
		StatusDelivered:      p.OrderStatus5,
	}
}

// Reached reports whether the given status has been recorded.
func (p *OrderPivot) Reached(s Status) bool {
	v, ok := p.Statuses()[s]
	return ok && v != "" && v != StatusUnset
}
