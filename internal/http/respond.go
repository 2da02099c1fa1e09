package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/jewel_cart/internal/backend"
	"github.com/fjod/jewel_cart/internal/cart"
	"github.com/fjod/jewel_cart/internal/checkout"
	"github.com/fjod/jewel_cart/internal/repository"
	"github.com/fjod/jewel_cart/internal/wishlist"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps a domain error to an HTTP status and error code.
func handleError(w http.ResponseWriter, err error) {
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "validation failed",
			Code:   "validation_failed",
			Fields: verr.Fields,
		})
		return
	}
	var perr *checkout.PaymentError
	if errors.As(err, &perr) {
		respondError(w, http.StatusPaymentRequired, "payment_failed", perr.Error())
		return
	}

	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrQuantityBelowMinimum),
		errors.Is(err, checkout.ErrInvalidQuantity):
		status, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, checkout.ErrEmptyCart):
		status, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, cart.ErrItemNotFound), errors.Is(err, wishlist.ErrItemNotFound):
		status, code = http.StatusNotFound, "item_not_found"
	case errors.Is(err, backend.ErrProductNotFound):
		status, code = http.StatusNotFound, "product_not_found"
	case errors.Is(err, repository.ErrAddressNotFound):
		status, code = http.StatusNotFound, "address_not_found"
	case errors.Is(err, checkout.ErrUnknownPayment):
		status, code = http.StatusNotFound, "unknown_payment"
	case errors.Is(err, wishlist.ErrAlreadyInWishlist):
		status, code = http.StatusConflict, "already_exists"
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		status, code = http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, checkout.ErrNoPendingPayment):
		status, code = http.StatusConflict, "no_pending_payment"
	case errors.Is(err, checkout.ErrIllegalTransition):
		status, code = http.StatusConflict, "illegal_transition"
	case errors.Is(err, checkout.ErrPaymentTimeout), errors.Is(err, checkout.ErrPaymentCancelled):
		status, code = http.StatusConflict, "payment_not_completed"
	case errors.Is(err, checkout.ErrPaymentNotVerified):
		status, code = http.StatusConflict, "payment_not_verified"
	case errors.Is(err, checkout.ErrCartChanged):
		status, code = http.StatusConflict, "cart_changed"
	case errors.Is(err, checkout.ErrOrderSubmission):
		status, code = http.StatusBadGateway, "order_submission_failed"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		zap.L().Error("unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondError(w, status, code, err.Error())
}
