package domain

import "github.com/shopspring/decimal"

type PaymentCustomer struct {
	Name        string
	Email       string
	Phone       string
	AddressLine string
}

// PaymentRequest is what the gateway needs to open a hosted payment page.
type PaymentRequest struct {
	CheckoutID  string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Customer    PaymentCustomer
}

// PaymentSession identifies an opened payment at the gateway. URL is where
// the customer is sent to pay.
type PaymentSession struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusDeclined  PaymentStatus = "DECLINED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// PaymentResult is the gateway's verdict on a payment session. Token is the
// opaque confirmation reference, set only for paid sessions.
type PaymentResult struct {
	Ref    string
	Status PaymentStatus
	Token  string
	Reason string
}
