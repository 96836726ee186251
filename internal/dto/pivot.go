package dto

import (
	"time"

	"github.com/sultanlodh/Stream/internal/entity"
	"github.com/sultanlodh/Stream/internal/position"
)

// PivotResponse is a table3 row as exposed via transport layers.
type PivotResponse struct {
	OrderID      int64    `json:"orderId"`
	OrderItem    *string  `json:"orderItem"`
	CustomerName *string  `json:"customerName"`
	OrderDate    string   `json:"orderDate,omitempty"`
	OrderStatus1 string   `json:"orderStatus1"`
	OrderStatus2 string   `json:"orderStatus2"`
	OrderStatus3 string   `json:"orderStatus3"`
	OrderStatus4 string   `json:"orderStatus4"`
	OrderStatus5 string   `json:"orderStatus5"`
	Reached      []string `json:"reached"`
}

// NewPivotResponse converts a pivot row.
func NewPivotResponse(p *entity.OrderPivot) PivotResponse {
	order := entity.Order{OrderDate: p.OrderDate}
	resp := PivotResponse{
		OrderID:      p.OrderID,
		OrderItem:    p.OrderItem,
		CustomerName: p.CustomerName,
		OrderDate:    order.OrderDateString(),
		OrderStatus1: p.OrderStatus1,
		OrderStatus2: p.OrderStatus2,
		OrderStatus3: p.OrderStatus3,
		OrderStatus4: p.OrderStatus4,
		OrderStatus5: p.OrderStatus5,
		Reached:      []string{},
	}
	for _, s := range entity.AllStatuses() {
		if p.Reached(s) {
			resp.Reached = append(resp.Reached, s.Name())
		}
	}
	return resp
}

// CheckpointResponse reports processor progress.
type CheckpointResponse struct {
	Running     bool              `json:"running"`
	Since       *time.Time        `json:"since,omitempty"`
	Position    position.Position `json:"position"`
	LastCommit  *time.Time        `json:"lastCommit,omitempty"`
	LastError   string            `json:"lastError,omitempty"`
	Applied     uint64            `json:"applied"`
	Failed      uint64            `json:"failed"`
	Checkpoints uint64            `json:"checkpoints"`
}
