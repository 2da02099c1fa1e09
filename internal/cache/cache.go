package cache

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/jewel_cart/internal/domain"
)

// Snapshot is the persisted state of one shopping session.
type Snapshot struct {
	SessionID string                `json:"session_id"`
	Cart      []domain.LineItem     `json:"cart"`
	Wishlist  []domain.WishlistItem `json:"wishlist"`
	UpdatedAt time.Time             `json:"updated_at"`
}

type SessionCache interface {
	Get(ctx context.Context, sessionID string) (*Snapshot, error)
	Set(ctx context.Context, sessionID string, snap *Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
