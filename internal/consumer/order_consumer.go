package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fjod/jewel_cart/internal/publisher"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// SessionEvictor drops in-memory sessions made stale by an order placed elsewhere.
type SessionEvictor interface {
	EvictStale(sessionID, checkoutID string) bool
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// OrderConsumer follows the order-placed topic so that every storefront
// instance forgets its copy of a session whose cart was checked out elsewhere.
type OrderConsumer struct {
	reader  messageReader
	evictor SessionEvictor
	logger  *zap.Logger
}

// NewOrderConsumer reads with its own group id; each instance must see every event.
func NewOrderConsumer(evictor SessionEvictor, logger *zap.Logger, groupID string, brokers ...string) *OrderConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       publisher.TopicOrderPlaced,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MaxBytes:    10e6, // 10MB
	})
	return &OrderConsumer{reader: reader, evictor: evictor, logger: logger}
}

func (c *OrderConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *OrderConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *OrderConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.logger.Error("error reading message", zap.Error(err))
		return
	}

	if eventType(m) != publisher.EventTypeOrderPlaced {
		return
	}
	var event publisher.OrderPlacedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.logger.Error("error parsing message", zap.Error(err), zap.Int64("offset", m.Offset))
		return
	}
	if event.SessionID == "" {
		return
	}
	c.evictor.EvictStale(event.SessionID, event.CheckoutID)
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
