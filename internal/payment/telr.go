package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fjod/jewel_cart/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Telr order status codes returned by method=check.
const (
	statusCancelled  = -2
	statusDeclined   = -3
	statusAuthorised = 2
	statusPaid       = 3
)

var ErrGatewayMisconfigured = errors.New("telr configuration missing")

type TelrConfig struct {
	APIURL   string
	StoreID  int
	AuthKey  string
	TestMode bool
	// hosted page redirects
	AuthorisedURL string
	DeclinedURL   string
	CancelledURL  string
	Timeout       time.Duration
}

// TelrGateway opens hosted payment pages at Telr and checks their outcome.
type TelrGateway struct {
	cfg    TelrConfig
	client *http.Client
	logger *zap.Logger
}

func NewTelrGateway(cfg TelrConfig, logger *zap.Logger) (*TelrGateway, error) {
	if cfg.StoreID == 0 || cfg.AuthKey == "" || cfg.APIURL == "" {
		return nil, ErrGatewayMisconfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &TelrGateway{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}, nil
}

type telrAddress struct {
	Line1 string `json:"line1,omitempty"`
}

type telrCustomer struct {
	Name    string      `json:"name,omitempty"`
	Email   string      `json:"email,omitempty"`
	Phone   string      `json:"phone,omitempty"`
	Address telrAddress `json:"address"`
}

type telrOrder struct {
	CartID      string `json:"cartid,omitempty"`
	Ref         string `json:"ref,omitempty"`
	Test        int    `json:"test,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
}

type telrRequest struct {
	Method   string            `json:"method"`
	Store    int               `json:"store"`
	AuthKey  string            `json:"authkey"`
	Order    telrOrder         `json:"order"`
	Customer *telrCustomer     `json:"customer,omitempty"`
	Return   map[string]string `json:"return,omitempty"`
}

type telrResponse struct {
	Order struct {
		Ref    string `json:"ref"`
		URL    string `json:"url"`
		CartID string `json:"cartid"`
		Status struct {
			Code int    `json:"code"`
			Text string `json:"text"`
		} `json:"status"`
		Transaction struct {
			Ref     string `json:"ref"`
			Message string `json:"message"`
		} `json:"transaction"`
	} `json:"order"`
	Error *struct {
		Message string `json:"message"`
		Note    string `json:"note"`
	} `json:"error,omitempty"`
}

// CreatePayment registers the order with Telr and returns the hosted page URL.
func (g *TelrGateway) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentSession, error) {
	test := 0
	if g.cfg.TestMode {
		test = 1
	}
	resp, err := g.call(ctx, telrRequest{
		Method:  "create",
		Store:   g.cfg.StoreID,
		AuthKey: g.cfg.AuthKey,
		Order: telrOrder{
			CartID:      req.CheckoutID,
			Test:        test,
			Amount:      req.Amount.StringFixed(2),
			Currency:    req.Currency,
			Description: req.Description,
		},
		Customer: &telrCustomer{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Phone:   req.Customer.Phone,
			Address: telrAddress{Line1: req.Customer.AddressLine},
		},
		Return: map[string]string{
			"authorised": g.cfg.AuthorisedURL,
			"declined":   g.cfg.DeclinedURL,
			"cancelled":  g.cfg.CancelledURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.Order.URL == "" || resp.Order.Ref == "" {
		return nil, errors.New("telr returned empty payment URL")
	}
	g.logger.Info("telr payment created", zap.String("cart_id", req.CheckoutID), zap.String("ref", resp.Order.Ref))
	return &domain.PaymentSession{Ref: resp.Order.Ref, URL: resp.Order.URL}, nil
}

// Verify asks Telr for the current status of the order identified by ref.
func (g *TelrGateway) Verify(ctx context.Context, ref string) (*domain.PaymentResult, error) {
	resp, err := g.call(ctx, telrRequest{
		Method:  "check",
		Store:   g.cfg.StoreID,
		AuthKey: g.cfg.AuthKey,
		Order:   telrOrder{Ref: ref},
	})
	if err != nil {
		return nil, err
	}

	result := &domain.PaymentResult{Ref: ref, Reason: resp.Order.Status.Text}
	switch resp.Order.Status.Code {
	case statusAuthorised, statusPaid:
		result.Status = domain.PaymentStatusPaid
		result.Token = resp.Order.Transaction.Ref
		result.Reason = ""
	case statusCancelled:
		result.Status = domain.PaymentStatusCancelled
	case statusDeclined:
		result.Status = domain.PaymentStatusDeclined
		if resp.Order.Transaction.Message != "" {
			result.Reason = resp.Order.Transaction.Message
		}
	default:
		result.Status = domain.PaymentStatusPending
		result.Reason = ""
	}
	return result, nil
}

func (g *TelrGateway) call(ctx context.Context, payload telrRequest) (*telrResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal telr request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach telr: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read telr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telr API error (%d): %s", resp.StatusCode, string(data))
	}

	var out telrResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse telr response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("telr error: %s %s", out.Error.Message, out.Error.Note)
	}
	return &out, nil
}
