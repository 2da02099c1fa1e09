package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/jewel_cart/internal/publisher"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	errs   []error
	closed bool
}

func (m *mockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(m.msgs) > 0 {
		msg := m.msgs[0]
		m.msgs = m.msgs[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type eviction struct{ session, checkout string }

type mockEvictor struct {
	mu    sync.Mutex
	calls []eviction
}

func (m *mockEvictor) EvictStale(sessionID, checkoutID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, eviction{sessionID, checkoutID})
	return true
}

func (m *mockEvictor) evictions() []eviction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]eviction(nil), m.calls...)
}

func orderPlaced(t *testing.T, sessionID, checkoutID string) kafka.Message {
	value, err := json.Marshal(publisher.OrderPlacedEvent{SessionID: sessionID, CheckoutID: checkoutID, OrderID: "ORD-1"})
	require.NoError(t, err)
	return kafka.Message{
		Key:     []byte(checkoutID),
		Value:   value,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(publisher.EventTypeOrderPlaced)}},
	}
}

func newConsumer(r *mockReader, e *mockEvictor) *OrderConsumer {
	return &OrderConsumer{reader: r, evictor: e, logger: zap.NewNop()}
}

func TestProcessMessage_EvictsSession(t *testing.T) {
	r := &mockReader{msgs: []kafka.Message{orderPlaced(t, "sess-1", "c-1")}}
	e := &mockEvictor{}

	newConsumer(r, e).processMessage(context.Background())

	assert.Equal(t, []eviction{{"sess-1", "c-1"}}, e.evictions())
}

func TestProcessMessage_SkipsUnusableMessages(t *testing.T) {
	other := orderPlaced(t, "sess-1", "c-1")
	other.Headers[0].Value = []byte("OrderCancelled")
	noSession := orderPlaced(t, "", "c-2")
	garbage := kafka.Message{
		Value:   []byte("{not json"),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(publisher.EventTypeOrderPlaced)}},
	}
	r := &mockReader{
		msgs: []kafka.Message{other, noSession, garbage},
		errs: []error{errors.New("broker gone")},
	}
	e := &mockEvictor{}
	c := newConsumer(r, e)

	for range 4 {
		c.processMessage(context.Background())
	}

	assert.Empty(t, e.evictions())
}

func TestRun_StopsOnCancel(t *testing.T) {
	r := &mockReader{msgs: []kafka.Message{orderPlaced(t, "sess-1", "c-1"), orderPlaced(t, "sess-2", "c-2")}}
	e := &mockEvictor{}
	c := newConsumer(r, e)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(e.evictions()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}

	c.Close()
	assert.True(t, r.closed)
}
