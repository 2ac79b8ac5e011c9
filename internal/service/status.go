package service

import "autoparts-service/internal/models"

// transitions is the order state machine. Cancellation and the happy
// path move forward only; delivered and cancelled may be refunded.
var transitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed:  {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
	models.OrderStatusDelivered:  {models.OrderStatusRefunded},
	models.OrderStatusCancelled:  {models.OrderStatusRefunded},
	models.OrderStatusRefunded:   {},
}

// ValidStatus reports whether s names a known order status
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// ValidTransition reports whether an order may move from one status to
// another
func ValidTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CancellableStatus reports whether an order in the given status may
// still be cancelled with its stock restored. Shipped goods are out of
// the warehouse and cannot be reversed here.
func CancellableStatus(s string) bool {
	return ValidTransition(s, models.OrderStatusCancelled)
}
