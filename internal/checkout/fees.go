package checkout

import (
	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/shopspring/decimal"
)

// FeeSchedule holds the optional add-on charges. GiftWrap and Express are
// flat amounts; InsurancePercent applies to the subtotal plus flat fees.
type FeeSchedule struct {
	GiftWrap         decimal.Decimal
	Express          decimal.Decimal
	InsurancePercent decimal.Decimal
}

// AddOns are the customer's selections on the checkout form.
type AddOns struct {
	GiftWrap  bool `json:"gift_wrap"`
	Express   bool `json:"express"`
	Insurance bool `json:"insurance"`
}

// Compute applies the flat fees first and then insurance on the running total.
func (f FeeSchedule) Compute(subtotal decimal.Decimal, addOns AddOns) domain.FeeBreakdown {
	b := domain.FeeBreakdown{
		Subtotal:  subtotal,
		GiftWrap:  decimal.Zero,
		Express:   decimal.Zero,
		Insurance: decimal.Zero,
	}
	running := subtotal
	if addOns.GiftWrap {
		b.GiftWrap = f.GiftWrap
		running = running.Add(f.GiftWrap)
	}
	if addOns.Express {
		b.Express = f.Express
		running = running.Add(f.Express)
	}
	if addOns.Insurance {
		b.Insurance = running.Mul(f.InsurancePercent).Div(decimal.NewFromInt(100)).Round(2)
		running = running.Add(b.Insurance)
	}
	b.Total = running.Round(2)
	return b
}
