package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/jewel_cart/internal/domain"
)

// mockGateway implements PaymentGateway for testing
type mockGateway struct {
	mu        sync.Mutex
	requests  []domain.PaymentRequest
	createErr error
	result    *domain.PaymentResult
	verifyErr error
	verified  int
	block     chan struct{}
}

func (m *mockGateway) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentSession, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	ref := fmt.Sprintf("REF-%d", len(m.requests))
	return &domain.PaymentSession{Ref: ref, URL: "https://pay.example/" + ref}, nil
}

// Verify reports every payment as paid unless result is set.
func (m *mockGateway) Verify(_ context.Context, ref string) (*domain.PaymentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verified++
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	r := domain.PaymentResult{Status: domain.PaymentStatusPaid}
	if m.result != nil {
		r = *m.result
	}
	r.Ref = ref
	return &r, nil
}

func (m *mockGateway) verifications() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verified
}

func (m *mockGateway) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// mockOrders implements OrderCreator; errs are returned in order, one per call
type mockOrders struct {
	mu     sync.Mutex
	errs   []error
	orders []domain.Order
	ctxErr []error
}

func (m *mockOrders) CreateOrder(ctx context.Context, order *domain.Order) (*domain.OrderReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, *order)
	m.ctxErr = append(m.ctxErr, ctx.Err())
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &domain.OrderReceipt{OrderID: "ORD-" + order.CheckoutID[:8], Status: "pending"}, nil
}

func (m *mockOrders) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type journalEntry struct {
	op     string
	id     string
	status domain.CheckoutStatus
}

// mockJournal implements Journal and records every call
type mockJournal struct {
	mu      sync.Mutex
	entries []journalEntry
	err     error
}

func (m *mockJournal) add(e journalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func (m *mockJournal) CreateCheckoutSession(_ context.Context, s *domain.CheckoutSession) error {
	return m.add(journalEntry{op: "create", id: s.ID, status: s.Status})
}

func (m *mockJournal) UpdateCheckoutStatus(_ context.Context, id string, status domain.CheckoutStatus, _ string) error {
	return m.add(journalEntry{op: "status", id: id, status: status})
}

func (m *mockJournal) SetPayment(_ context.Context, id, _, _ string) error {
	return m.add(journalEntry{op: "payment", id: id})
}

func (m *mockJournal) CompleteCheckout(_ context.Context, id, _ string) error {
	return m.add(journalEntry{op: "complete", id: id})
}

func (m *mockJournal) ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.op
	}
	return out
}

type mockPublisher struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (m *mockPublisher) PublishOrderPlaced(_ context.Context, order *domain.Order, _ *domain.OrderReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, *order)
	return nil
}

var errBackendDown = errors.New("backend unavailable")
