package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/jewel_cart/internal/checkout"
	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/fjod/jewel_cart/internal/repository"
	"github.com/fjod/jewel_cart/internal/session"
	"github.com/shopspring/decimal"
)

type CheckoutHandler struct {
	sessions  *session.Manager
	products  ProductCatalog
	addresses repository.AddressRepository
	timeout   time.Duration
}

func NewCheckoutHandler(sessions *session.Manager, products ProductCatalog, addresses repository.AddressRepository, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		sessions:  sessions,
		products:  products,
		addresses: addresses,
		timeout:   timeout,
	}
}

// CheckoutRequestDTO carries the checkout form. AddressID picks a saved
// address; Address is used as given otherwise.
type CheckoutRequestDTO struct {
	AddressID string             `json:"address_id,omitempty"`
	Address   *AddressRequestDTO `json:"address,omitempty"`
	Phone     string             `json:"phone,omitempty"`
	Email     string             `json:"email,omitempty"`
	AddOns    checkout.AddOns    `json:"add_ons"`
}

type BuyNowRequestDTO struct {
	CheckoutRequestDTO
	Item ItemRequestDTO `json:"item"`
}

// CallbackRequestDTO is posted when the shopper returns from the payment
// page. Without a token the payment is looked up at the gateway.
type CallbackRequestDTO struct {
	Ref    string `json:"ref"`
	Token  string `json:"token,omitempty"`
	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type CheckoutResponseDTO struct {
	Status     domain.CheckoutStatus `json:"status"`
	CheckoutID string                `json:"checkout_id,omitempty"`
	PaymentRef string                `json:"payment_ref,omitempty"`
	PaymentURL string                `json:"payment_url,omitempty"`
	Amount     decimal.Decimal       `json:"amount"`
	Currency   string                `json:"currency,omitempty"`
	OrderID    string                `json:"order_id,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func checkoutResponse(st checkout.State) CheckoutResponseDTO {
	resp := CheckoutResponseDTO{
		Status:     st.Status,
		CheckoutID: st.CheckoutID,
		PaymentRef: st.PaymentRef,
		PaymentURL: st.PaymentURL,
		Amount:     st.Amount,
		Currency:   st.Currency,
	}
	if st.Receipt != nil {
		resp.OrderID = st.Receipt.OrderID
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

// POST /api/v1/checkout
func (h *CheckoutHandler) CheckoutCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	form, err := h.form(ctx, s.ID, req)
	if err != nil {
		handleError(w, err)
		return
	}

	st, err := s.Checkout.CheckoutCart(ctx, form)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, checkoutResponse(st))
}

// POST /api/v1/checkout/buy-now
func (h *CheckoutHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req BuyNowRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Item.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Item.Quantity == 0 {
		req.Item.Quantity = 1
	}

	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	form, err := h.form(ctx, s.ID, req.CheckoutRequestDTO)
	if err != nil {
		handleError(w, err)
		return
	}
	p, v, ok := resolveProduct(ctx, w, h.products, req.Item)
	if !ok {
		return
	}

	st, err := s.Checkout.BuyNow(ctx, *p, v, req.Item.Quantity, form)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, checkoutResponse(st))
}

// GET /api/v1/checkout
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(s.Checkout.State()))
}

// POST /api/v1/checkout/cancel
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	st, err := s.Checkout.Cancel()
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(st))
}

// POST /api/v1/checkout/reset
func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	st, err := s.Checkout.Reset()
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(st))
}

// POST /api/v1/checkout/callback
func (h *CheckoutHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CallbackRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}

	var st checkout.State
	switch strings.ToLower(req.Status) {
	case "declined", "cancelled":
		reason := req.Reason
		if reason == "" {
			reason = strings.ToLower(req.Status)
		}
		st, err = s.Checkout.FailPayment(req.Ref, reason)
	default:
		// success is only taken from the gateway, never from the request
		if req.Ref != "" {
			st, err = s.Checkout.ConfirmPayment(ctx, req.Ref, req.Token)
		} else {
			st, err = s.Checkout.Resolve(ctx)
		}
	}
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(st))
}

func (h *CheckoutHandler) form(ctx context.Context, sessionID string, req CheckoutRequestDTO) (checkout.Form, error) {
	form := checkout.Form{
		Phone:  req.Phone,
		Email:  req.Email,
		AddOns: req.AddOns,
	}
	switch {
	case req.AddressID != "" && h.addresses != nil:
		addr, err := h.addresses.Get(ctx, sessionID, req.AddressID)
		if err != nil {
			return checkout.Form{}, err
		}
		form.Address = addr
	case req.Address != nil:
		addr := req.Address.toAddress(sessionID)
		form.Address = &addr
	}
	return form, nil
}
