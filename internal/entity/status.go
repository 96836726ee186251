package entity

import "fmt"

// Status is the numeric order status stored in table2.orderStatus.
type Status int

const (
	StatusOrdered        Status = 1
	StatusProcessing     Status = 2
	StatusShipped        Status = 3
	StatusOutForDelivery Status = 4
	StatusDelivered      Status = 5
)

// Values written into the pivot columns. The mixed casing matches the rows already
// present in deployed pivot tables.
var statusNames = map[Status]string{
	StatusOrdered:        "ordered",
	StatusProcessing:     "Processing",
	StatusShipped:        "shipped",
	StatusOutForDelivery: "outForDelivery",
	StatusDelivered:      "delivered",
}

// AllStatuses lists the statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusOrdered, StatusProcessing, StatusShipped, StatusOutForDelivery, StatusDelivered}
}

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Name returns the pivot value for s, or "" when s is unknown.
func (s Status) Name() string {
	return statusNames[s]
}

// Column returns the table3 column holding s.
func (s Status) Column() string {
	return fmt.Sprintf("orderStatus%d", int(s))
}

func (s Status) String() string {
	if name := s.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}
