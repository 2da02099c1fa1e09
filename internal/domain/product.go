package domain

import "github.com/shopspring/decimal"

// Variant is one physical configuration of a product. Every field is optional.
type Variant struct {
	Weight          string          `json:"weight,omitempty"`
	Carat           string          `json:"carat,omitempty"`
	Purity          string          `json:"purity,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Markup          decimal.Decimal `json:"markup"`
}

// FinalPrice is the price a customer pays for one unit of the variant:
// the discount applies to the base price, the markup is added afterwards.
func (v *Variant) FinalPrice() decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	discounted := v.Price.Mul(hundred.Sub(v.DiscountPercent)).Div(hundred)
	return discounted.Add(v.Markup).Round(2)
}

type Product struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category,omitempty"`
	Variants []Variant `json:"variants,omitempty"`
}

// DefaultVariant returns the first listed variant, or nil for products sold without one.
func (p Product) DefaultVariant() *Variant {
	if len(p.Variants) == 0 {
		return nil
	}
	v := p.Variants[0]
	return &v
}
