package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/fjod/jewel_cart/internal/session"
	"github.com/go-chi/chi/v5"
)

type WishlistHandler struct {
	sessions *session.Manager
	products ProductCatalog
	timeout  time.Duration
}

func NewWishlistHandler(sessions *session.Manager, products ProductCatalog, timeout time.Duration) *WishlistHandler {
	return &WishlistHandler{
		sessions: sessions,
		products: products,
		timeout:  timeout,
	}
}

type WishlistResponseDTO struct {
	Items []domain.WishlistItem `json:"items"`
}

// GET /api/v1/wishlist
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, WishlistResponseDTO{Items: s.Wishlist.Items()})
}

// POST /api/v1/wishlist/items
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	p, v, ok := resolveProduct(ctx, w, h.products, req)
	if !ok {
		return
	}
	if _, err := s.Wishlist.Add(*p, v); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, WishlistResponseDTO{Items: s.Wishlist.Items()})
}

// DELETE /api/v1/wishlist/items/{key}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	s.Wishlist.Remove(chi.URLParam(r, "key"))
	respondJSON(w, http.StatusOK, WishlistResponseDTO{Items: s.Wishlist.Items()})
}

// POST /api/v1/wishlist/items/{key}/move-to-cart
func (h *WishlistHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	if _, err := s.Wishlist.MoveToCart(chi.URLParam(r, "key"), s.Cart); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(s.Cart))
}
