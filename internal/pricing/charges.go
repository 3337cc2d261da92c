package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// aggregateCharges sums applicable fees, levies, and surcharges. Absolute
// charges scale with quantity; percentage charges are computed against the
// running price entering the stage.
func aggregateCharges(refs []TaxChargeRef, sku string, qty, running decimal.Decimal, now time.Time) ([]QuoteComponent, decimal.Decimal) {
	var components []QuoteComponent
	total := decimal.Zero

	for _, ref := range refs {
		if ref.Kind != KindFee && ref.Kind != KindLevy && ref.Kind != KindSurcharge {
			continue
		}
		if !ref.Active || !withinWindow(now, ref.ValidFrom, ref.ValidTo) {
			continue
		}
		if !chargeMatches(ref, sku) {
			continue
		}

		component := QuoteComponent{
			Type:           ComponentCharge,
			Key:            ref.Code,
			Description:    ref.Name,
			CalculatedFrom: ref.ID,
		}
		var value decimal.Decimal
		if ref.Method == MethodPercent {
			basis := running
			value = ref.RateOrAmount.Div(percentDivisor).Mul(basis)
			component.Basis = &basis
		} else {
			value = ref.RateOrAmount.Mul(qty)
		}
		component.Value = value
		components = append(components, component)
		total = total.Add(value)
	}
	return components, total
}

func chargeMatches(ref TaxChargeRef, sku string) bool {
	switch ref.Scope {
	case ScopeSKU:
		return ref.ScopeValue == sku
	case ScopeCommodity:
		return strings.HasPrefix(sku, ref.ScopeValue)
	default:
		return true
	}
}
