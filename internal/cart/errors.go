package cart

import "errors"

var (
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrQuantityBelowMinimum = errors.New("quantity cannot go below 1")
	ErrItemNotFound         = errors.New("item not found in cart")
)
