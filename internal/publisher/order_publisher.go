package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	TopicOrderPlaced     = "order-placed"
	EventTypeOrderPlaced = "OrderPlaced"
)

// OrderPlacedEvent is the message value published for every accepted order.
type OrderPlacedEvent struct {
	OrderID     string             `json:"order_id"`
	CheckoutID  string             `json:"checkout_id"`
	SessionID   string             `json:"session_id,omitempty"`
	Status      string             `json:"status"`
	Items       []domain.OrderItem `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Currency    string             `json:"currency"`
	PaymentRef  string             `json:"payment_ref"`
	PlacedAt    time.Time          `json:"placed_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OrderPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewOrderPublisher(logger *zap.Logger, brokers ...string) *OrderPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  TopicOrderPlaced,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &OrderPublisher{writer: w, logger: logger}
}

func (p *OrderPublisher) PublishOrderPlaced(ctx context.Context, order *domain.Order, receipt *domain.OrderReceipt) error {
	msg, err := buildMessage(order, receipt)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order placed: %w", err)
	}
	p.logger.Debug("order placed event published",
		zap.String("checkout_id", order.CheckoutID), zap.String("order_id", receipt.OrderID))
	return nil
}

func (p *OrderPublisher) Close() error {
	return p.writer.Close()
}

// buildMessage keys the message by checkout id so events for one checkout stay ordered.
func buildMessage(order *domain.Order, receipt *domain.OrderReceipt) (kafka.Message, error) {
	event := OrderPlacedEvent{
		OrderID:     receipt.OrderID,
		CheckoutID:  order.CheckoutID,
		SessionID:   order.SessionID,
		Status:      receipt.Status,
		Items:       order.Items,
		TotalAmount: order.Total,
		Currency:    order.Currency,
		PaymentRef:  order.PaymentRef,
		PlacedAt:    order.CreatedAt,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal order placed event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(order.CheckoutID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeOrderPlaced)},
		},
	}, nil
}
