// Package apperr defines the error kinds surfaced by the storefront core.
//
// Every failure returned from a service carries a Kind that callers can switch on
// and a stable Code naming the specific condition. Messages are safe to show to
// end users; the underlying cause, if any, is kept in Err for logging only.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidInput
	KindInsufficientStock
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindForbidden:
		return "FORBIDDEN"
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case KindConflict:
		return "CONFLICT"
	case KindUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code so that a sentinel still matches after Wrap or WithMessage.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a cause to a copy of e.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// WithMessage returns a copy of e with a more specific user-facing message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// KindOf reports the Kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether err may succeed if the operation is attempted again.
// Conflicts that describe a settled state (a duplicate, a key in use) are final.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindUnavailable:
		return true
	case KindConflict:
		return e.Code == ErrConflict.Code
	}
	return false
}

var (
	ErrUserNotFound    = New(KindNotFound, "USER_NOT_FOUND", "User not found")
	ErrProductNotFound = New(KindNotFound, "PRODUCT_NOT_FOUND", "Product not found")
	ErrOrderNotFound   = New(KindNotFound, "ORDER_NOT_FOUND", "Order not found")
	ErrReviewNotFound  = New(KindNotFound, "REVIEW_NOT_FOUND", "Review not found")
	ErrCartNotFound    = New(KindNotFound, "CART_NOT_FOUND", "Cart not found")
	ErrCartItemMissing = New(KindNotFound, "CART_ITEM_NOT_FOUND", "Item not found in cart")
	ErrAddressNotFound = New(KindNotFound, "ADDRESS_NOT_FOUND", "Address not found")
	ErrNotInWishlist   = New(KindNotFound, "NOT_IN_WISHLIST", "Product is not in the wishlist")

	ErrForbidden = New(KindForbidden, "FORBIDDEN", "Not authorized to access this resource")

	ErrInvalidInput            = New(KindInvalidInput, "INVALID_INPUT", "Invalid input provided")
	ErrEmptyOrder              = New(KindInvalidInput, "EMPTY_ORDER", "Order has no items")
	ErrInvalidQuantity         = New(KindInvalidInput, "INVALID_QUANTITY", "Quantity must be at least 1")
	ErrInvalidStatus           = New(KindInvalidInput, "INVALID_STATUS", "Status must be one of Pending, Shipped, Delivered")
	ErrInvalidStatusTransition = New(KindInvalidInput, "INVALID_STATUS_TRANSITION", "Order status can only move forward")
	ErrInvalidRating           = New(KindInvalidInput, "INVALID_RATING", "Rating must be between 1 and 5")
	ErrNotDelivered            = New(KindInvalidInput, "NOT_DELIVERED", "Can only review delivered orders")
	ErrProductNotInOrder       = New(KindInvalidInput, "PRODUCT_NOT_IN_ORDER", "Product not found in this order")
	ErrTooManyImages           = New(KindInvalidInput, "TOO_MANY_IMAGES", "Maximum 3 images allowed")
	ErrImageRequired           = New(KindInvalidInput, "IMAGE_REQUIRED", "At least one image is required")

	ErrInsufficientStock = New(KindInsufficientStock, "INSUFFICIENT_STOCK", "Insufficient stock available")

	ErrConflict        = New(KindConflict, "CONFLICT", "Resource was modified concurrently, please retry")
	ErrAlreadyInList   = New(KindConflict, "ALREADY_IN_WISHLIST", "Product already in wishlist")
	ErrRequestInFlight = New(KindConflict, "REQUEST_IN_PROGRESS", "A request with this idempotency key is still in progress")
	ErrUnavailable     = New(KindUnavailable, "UNAVAILABLE", "Service temporarily unavailable, please retry")
	ErrInternal        = New(KindInternal, "INTERNAL", "An unexpected error occurred")
)
