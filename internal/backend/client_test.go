package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: time.Second, MaxFailures: 2, OpenInterval: time.Minute}, zap.NewNop())
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:         "order-1",
		CheckoutID: "chk-1",
		Phone:      "9876543210",
		Items: []domain.OrderItem{
			{ProductID: "R1", Name: "Ring", Quantity: 2, Price: decimal.RequireFromString("1000")},
		},
		Total:    decimal.RequireFromString("2000"),
		Currency: "INR",
	}
}

func TestCreateOrder_Success(t *testing.T) {
	var got domain.Order
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":"ORD-77","status":"pending"}`))
	})

	receipt, err := c.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)

	assert.Equal(t, "ORD-77", receipt.OrderID)
	assert.Equal(t, "pending", receipt.Status)
	assert.Equal(t, "chk-1", got.CheckoutID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("2000").Equal(got.Total))
}

func TestCreateOrder_EmptyReceiptUsesOrderID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	receipt, err := c.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "order-1", receipt.OrderID)
}

func TestCreateOrder_ClientErrorIsRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid address"}`, http.StatusUnprocessableEntity)
	})

	_, err := c.CreateOrder(context.Background(), sampleOrder())

	require.ErrorIs(t, err, domain.ErrOrderRejected)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnprocessableEntity, se.Code)
	assert.Contains(t, se.Body, "invalid address")
}

func TestCreateOrder_ServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.CreateOrder(context.Background(), sampleOrder())

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrOrderRejected)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for range 2 {
		_, err := c.CreateOrder(context.Background(), sampleOrder())
		require.Error(t, err)
	}
	_, err := c.CreateOrder(context.Background(), sampleOrder())

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBreakerIgnoresRejections(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	for range 4 {
		_, err := c.CreateOrder(context.Background(), sampleOrder())
		require.ErrorIs(t, err, domain.ErrOrderRejected)
	}
	assert.Equal(t, int32(4), hits.Load())
}

func TestGetProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/R1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"R1","name":"Ring","variants":[{"weight":"5g","carat":"22K","price":"1000","discount_percent":"10","markup":"50"}]}`))
	})

	p, err := c.GetProduct(context.Background(), "R1")
	require.NoError(t, err)

	assert.Equal(t, "Ring", p.Name)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "950", p.DefaultVariant().FinalPrice().String())
}

func TestGetProduct_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProduct_ConcurrentCallsShareRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"id":"R1","name":"Ring"}`))
	})

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.GetProduct(context.Background(), "R1")
			assert.NoError(t, err)
			assert.Equal(t, "R1", p.ID)
		}()
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestCreateOrder_SendsOrderIDAsIdempotencyKey(t *testing.T) {
	var keys []string
	var mu sync.Mutex
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get(HeaderIdempotencyKey))
		mu.Unlock()
		if hits.Add(1) == 1 {
			http.Error(w, "upstream timeout", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"order_id":"ORD-1"}`))
	})

	order := sampleOrder()
	_, err := c.CreateOrder(context.Background(), order)
	require.Error(t, err)
	_, err = c.CreateOrder(context.Background(), order)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"order-1", "order-1"}, keys)
}

func TestGetProduct_CanceledCallerDoesNotFailOthers(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"id":"R1","name":"Ring"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.GetProduct(ctx, "R1")
		first <- err
	}()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan *domain.Product, 1)
	go func() {
		p, err := c.GetProduct(context.Background(), "R1")
		assert.NoError(t, err)
		second <- p
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled caller still waiting")
	}

	close(release)
	select {
	case p := <-second:
		require.NotNil(t, p)
		assert.Equal(t, "R1", p.ID)
	case <-time.After(time.Second):
		t.Fatal("second caller never got the product")
	}
	assert.Equal(t, int32(1), hits.Load())
}
