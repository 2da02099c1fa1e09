package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// FeeBreakdown records how the charged amount was built from the subtotal.
type FeeBreakdown struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	GiftWrap  decimal.Decimal `json:"gift_wrap"`
	Express   decimal.Decimal `json:"express"`
	Insurance decimal.Decimal `json:"insurance"`
	Total     decimal.Decimal `json:"total"`
}

// Order is the payload sent to the backend once the gateway confirms payment.
type Order struct {
	ID           string          `json:"id"`
	CheckoutID   string          `json:"checkout_id"`
	SessionID    string          `json:"session_id,omitempty"`
	Address      Address         `json:"address"`
	Phone        string          `json:"phone"`
	Items        []OrderItem     `json:"items"`
	Fees         FeeBreakdown    `json:"fees"`
	Total        decimal.Decimal `json:"total"`
	Currency     string          `json:"currency"`
	PaymentRef   string          `json:"payment_ref"`
	PaymentToken string          `json:"payment_token"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderItemsFrom maps line items to the order tuples the backend expects.
func OrderItemsFrom(items []LineItem) []OrderItem {
	out := make([]OrderItem, len(items))
	for i, item := range items {
		out[i] = OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice,
		}
	}
	return out
}

type OrderReceipt struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
