package repository

import (
	"context"
	"errors"

	"github.com/fjod/jewel_cart/internal/domain"
)

var (
	ErrAddressNotFound  = errors.New("address not found")
	ErrCheckoutNotFound = errors.New("checkout session not found")
)

// AddressRepository is the saved-address book of a shopping session.
type AddressRepository interface {
	Save(ctx context.Context, addr *domain.Address) error
	List(ctx context.Context, sessionID string) ([]domain.Address, error)
	Get(ctx context.Context, sessionID, id string) (*domain.Address, error)
	Delete(ctx context.Context, sessionID, id string) error
}
