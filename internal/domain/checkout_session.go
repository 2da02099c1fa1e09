package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutSession is the journal record of one checkout attempt.
type CheckoutSession struct {
	ID           string
	SessionID    string
	Status       CheckoutStatus
	Amount       decimal.Decimal
	Currency     string
	Items        []LineItem
	PaymentRef   string
	PaymentToken string
	OrderID      string
	FailReason   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
