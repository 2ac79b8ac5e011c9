package apperr

import (
	"errors"
	"fmt"
)

// ErrEmptyCart is returned when checkout is attempted with no cart lines.
var ErrEmptyCart = errors.New("cart is empty")

// NotFoundError indicates a referenced entity is absent.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// InsufficientStockError carries the diagnostics clients display when
// a requested quantity exceeds what the catalog has.
type InsufficientStockError struct {
	SparePartID string
	PartName    string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available=%d, requested=%d",
		e.PartName, e.Available, e.Requested)
}

// ForbiddenError indicates the requester is authenticated but not
// authorized for the target resource.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return "access denied"
	}
	return "access denied: " + e.Reason
}

// InvalidStateTransitionError indicates an order status change that
// violates the state machine.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition: %s -> %s", e.From, e.To)
}

// ValidationError indicates malformed or missing input, caught before
// any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// IsBusinessError reports whether err belongs to the expected
// business-rule taxonomy, as opposed to a storage failure. Business
// errors are returned to callers with detail and are never logged as
// server errors.
func IsBusinessError(err error) bool {
	var nf *NotFoundError
	var is *InsufficientStockError
	var fb *ForbiddenError
	var st *InvalidStateTransitionError
	var va *ValidationError
	return errors.Is(err, ErrEmptyCart) ||
		errors.As(err, &nf) ||
		errors.As(err, &is) ||
		errors.As(err, &fb) ||
		errors.As(err, &st) ||
		errors.As(err, &va)
}
