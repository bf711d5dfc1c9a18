package order

import (
	"github.com/go-faster/errors"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPacked         Status = "packed"
	StatusDispatched     Status = "dispatched"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

var (
	// ErrInvalidStatus is returned for values outside the enumeration.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrTerminal is returned when a finished order is asked to move on.
	ErrTerminal = errors.New("order is in a terminal state")
)

// flow is the forward fulfilment sequence.
var flow = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPacked,
	StatusDispatched,
	StatusOutForDelivery,
	StatusDelivered,
}

// Statuses returns every status in display order.
func Statuses() []Status {
	return append(append([]Status(nil), flow...), StatusCancelled)
}

// ParseStatus validates s as a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
	return st, nil
}

// Valid reports whether s is an enumerated status.
func (s Status) Valid() bool {
	return s == StatusCancelled || s.index() >= 0
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Next returns the following status in the forward flow.
func (s Status) Next() (Status, bool) {
	i := s.index()
	if i < 0 || i == len(flow)-1 {
		return "", false
	}
	return flow[i+1], true
}

func (s Status) index() int {
	for i, st := range flow {
		if st == s {
			return i
		}
	}
	return -1
}
