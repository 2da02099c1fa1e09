package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	Key       string          `json:"key"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Variant   *Variant        `json:"variant,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

// Total is the line amount, unit price times quantity.
func (i LineItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewLineItem snapshots the variant's final price.
func NewLineItem(p Product, v *Variant, quantity int) LineItem {
	var variant *Variant
	if v != nil {
		c := *v
		variant = &c
	}
	return LineItem{
		Key:       ResolveKey(p.ID, v),
		ProductID: p.ID,
		Name:      p.Name,
		Variant:   variant,
		Quantity:  quantity,
		UnitPrice: variant.FinalPrice(),
		AddedAt:   time.Now(),
	}
}

type WishlistItem struct {
	Key       string    `json:"key"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Variant   *Variant  `json:"variant,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// Product rebuilds the minimal product reference the wishlist entry was made from.
func (w WishlistItem) Product() Product {
	p := Product{ID: w.ProductID, Name: w.Name}
	if w.Variant != nil {
		p.Variants = []Variant{*w.Variant}
	}
	return p
}
