package domain

import (
	"strings"
	"time"
)

// Address is a shipping destination. Line is the free-text composed address.
type Address struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	SessionID string    `json:"-" bson:"session_id"`
	Name      string    `json:"name" bson:"name" validate:"required"`
	Line      string    `json:"line" bson:"line" validate:"required"`
	Phone     string    `json:"phone" bson:"phone" validate:"required,phone10"`
	Email     string    `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// AddressParts is the structured form the address line is composed from.
type AddressParts struct {
	House   string `json:"house"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Compose joins the non-empty parts into a single address line.
func (p AddressParts) Compose() string {
	parts := make([]string, 0, 5)
	for _, s := range []string{p.House, p.Street, p.City, p.State, p.Pincode} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
