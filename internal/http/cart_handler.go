package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/jewel_cart/internal/cart"
	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/fjod/jewel_cart/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// ProductCatalog resolves products and their current prices.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

var errVariantNotFound = errors.New("variant not found")

type CartHandler struct {
	sessions *session.Manager
	products ProductCatalog
	timeout  time.Duration
}

func NewCartHandler(sessions *session.Manager, products ProductCatalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		products: products,
		timeout:  timeout,
	}
}

// ItemRequestDTO selects a product variant by its identifying fields.
type ItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Weight    string `json:"weight,omitempty"`
	Carat     string `json:"carat,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items    []domain.LineItem `json:"items"`
	Count    int               `json:"count"`
	Subtotal decimal.Decimal   `json:"subtotal"`
}

func cartResponse(c *cart.Store) CartResponseDTO {
	return CartResponseDTO{
		Items:    c.Items(),
		Count:    c.Count(),
		Subtotal: c.Subtotal(),
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(s.Cart))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
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
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
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
	if _, err := s.Cart.AddOrMerge(*p, v, req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(s.Cart))
}

// PUT /api/v1/cart/items/{key}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.mutate(w, r, func(c *cart.Store, key string) error {
		_, err := c.SetQuantity(key, req.Quantity)
		return err
	})
}

// POST /api/v1/cart/items/{key}/increment
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *cart.Store, key string) error {
		_, err := c.Increment(key)
		return err
	})
}

// POST /api/v1/cart/items/{key}/decrement
func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *cart.Store, key string) error {
		_, err := c.Decrement(key)
		return err
	})
}

// DELETE /api/v1/cart/items/{key}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *cart.Store, key string) error {
		c.Remove(key)
		return nil
	})
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *cart.Store, _ string) error {
		c.Clear()
		return nil
	})
}

func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(c *cart.Store, key string) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	if err := fn(s.Cart, chi.URLParam(r, "key")); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(s.Cart))
}

// resolveProduct loads the product and picks the requested variant, writing
// the error response itself when it cannot.
func resolveProduct(ctx context.Context, w http.ResponseWriter, products ProductCatalog, req ItemRequestDTO) (*domain.Product, *domain.Variant, bool) {
	p, err := products.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleError(w, err)
		return nil, nil, false
	}
	v, err := findVariant(p, req.Weight, req.Carat)
	if err != nil {
		respondError(w, http.StatusBadRequest, "variant_not_found", "no variant matches the requested weight and carat")
		return nil, nil, false
	}
	return p, v, true
}

// findVariant matches on the fields given; with neither given it returns the
// product's default variant.
func findVariant(p *domain.Product, weight, carat string) (*domain.Variant, error) {
	if weight == "" && carat == "" {
		return p.DefaultVariant(), nil
	}
	for i := range p.Variants {
		v := p.Variants[i]
		if (weight == "" || v.Weight == weight) && (carat == "" || v.Carat == carat) {
			return &v, nil
		}
	}
	return nil, errVariantNotFound
}
