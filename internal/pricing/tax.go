package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// applyVAT computes VAT on the net price. Only the first matching active
// VAT entry applies; multiple simultaneous VAT rates are not supported.
// With no matching entry the tax is zero and no component is emitted.
func applyVAT(refs []TaxChargeRef, net decimal.Decimal, now time.Time) (QuoteComponent, decimal.Decimal, bool) {
	for _, ref := range refs {
		if ref.Kind != KindVAT {
			continue
		}
		if !ref.Active || !withinWindow(now, ref.ValidFrom, ref.ValidTo) {
			continue
		}
		basis := net
		tax := ref.RateOrAmount.Div(percentDivisor).Mul(basis)
		component := QuoteComponent{
			Type:           ComponentTax,
			Key:            ref.Code,
			Description:    ref.Name,
			Value:          tax,
			Basis:          &basis,
			CalculatedFrom: ref.ID,
		}
		return component, tax, true
	}
	return QuoteComponent{}, decimal.Zero, false
}
