package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrProductNotFound = errors.New("product not found")

// HeaderIdempotencyKey lets the backend collapse retried order posts.
const HeaderIdempotencyKey = "Idempotency-Key"

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// clientSide reports whether the backend refused the request itself, as
// opposed to failing to process it.
func (e *StatusError) clientSide() bool {
	return e.Code >= 400 && e.Code < 500
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// breaker opens after this many consecutive failures
	MaxFailures  uint32
	OpenInterval time.Duration
}

// Client talks to the storefront backend over REST.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	sfg     singleflight.Group
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenInterval <= 0 {
		cfg.OpenInterval = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     cfg.OpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.clientSide())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})
	return c
}

// CreateOrder posts the order. A 4xx answer wraps domain.ErrOrderRejected;
// anything else that fails is worth retrying. The order id goes out as the
// idempotency key so a retry after a lost response does not book twice.
func (c *Client) CreateOrder(ctx context.Context, order *domain.Order) (*domain.OrderReceipt, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/orders", body, http.Header{HeaderIdempotencyKey: {order.ID}})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.clientSide() {
			return nil, fmt.Errorf("%w: %w", domain.ErrOrderRejected, err)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	var receipt domain.OrderReceipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("decode order receipt: %w", err)
	}
	if receipt.OrderID == "" {
		receipt.OrderID = order.ID
	}
	return &receipt, nil
}

// GetProduct fetches a product with its variants. Concurrent lookups of the
// same id share one request, which outlives any single caller giving up.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	ch := c.sfg.DoChan(id, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		data, err := c.do(fetchCtx, http.MethodGet, "/products/"+url.PathEscape(id), nil, nil)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Code == http.StatusNotFound {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("get product %s: %w", id, err)
		}
		var p domain.Product
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		return &p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		p := *res.Val.(*domain.Product)
		return &p, nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, header http.Header) ([]byte, error) {
	return c.cb.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.logger.Warn("backend request failed",
				zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
			return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}
		return data, nil
	})
}
