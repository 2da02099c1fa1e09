package checkout

import (
	"context"

	"github.com/fjod/jewel_cart/internal/domain"
)

// PaymentGateway opens hosted payment sessions and reports their outcome.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentSession, error)
	Verify(ctx context.Context, ref string) (*domain.PaymentResult, error)
}

// OrderCreator posts orders to the backend. Errors wrapping
// domain.ErrOrderRejected are not retried.
type OrderCreator interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.OrderReceipt, error)
}

// Journal records checkout attempts. Failures are logged and never block checkout.
type Journal interface {
	CreateCheckoutSession(ctx context.Context, session *domain.CheckoutSession) error
	UpdateCheckoutStatus(ctx context.Context, checkoutID string, status domain.CheckoutStatus, reason string) error
	SetPayment(ctx context.Context, checkoutID, ref, token string) error
	CompleteCheckout(ctx context.Context, checkoutID, orderID string) error
}

type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *domain.Order, receipt *domain.OrderReceipt) error
}

type noopJournal struct{}

func (noopJournal) CreateCheckoutSession(context.Context, *domain.CheckoutSession) error { return nil }
func (noopJournal) UpdateCheckoutStatus(context.Context, string, domain.CheckoutStatus, string) error {
	return nil
}
func (noopJournal) SetPayment(context.Context, string, string, string) error { return nil }
func (noopJournal) CompleteCheckout(context.Context, string, string) error   { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishOrderPlaced(context.Context, *domain.Order, *domain.OrderReceipt) error {
	return nil
}
