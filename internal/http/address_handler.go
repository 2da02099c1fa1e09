package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/fjod/jewel_cart/internal/repository"
	"github.com/go-chi/chi/v5"
)

type AddressHandler struct {
	repo    repository.AddressRepository
	timeout time.Duration
}

func NewAddressHandler(repo repository.AddressRepository, timeout time.Duration) *AddressHandler {
	return &AddressHandler{
		repo:    repo,
		timeout: timeout,
	}
}

// AddressRequestDTO takes either a composed line or its parts.
type AddressRequestDTO struct {
	Name  string               `json:"name"`
	Phone string               `json:"phone"`
	Email string               `json:"email,omitempty"`
	Line  string               `json:"line,omitempty"`
	Parts *domain.AddressParts `json:"parts,omitempty"`
}

func (d AddressRequestDTO) toAddress(sessionID string) domain.Address {
	line := strings.TrimSpace(d.Line)
	if line == "" && d.Parts != nil {
		line = d.Parts.Compose()
	}
	return domain.Address{
		SessionID: sessionID,
		Name:      strings.TrimSpace(d.Name),
		Line:      line,
		Phone:     strings.TrimSpace(d.Phone),
		Email:     strings.TrimSpace(d.Email),
	}
}

// GET /api/v1/addresses
func (h *AddressHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addresses, err := h.repo.List(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, addresses)
}

// POST /api/v1/addresses
func (h *AddressHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddressRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	addr := req.toAddress(getSessionID(r.Context()))
	if err := h.repo.Save(ctx, &addr); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, addr)
}

// DELETE /api/v1/addresses/{id}
func (h *AddressHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.repo.Delete(ctx, getSessionID(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
