package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// resolvePriceList selects the single Active, time-valid price list from
// the snapshot. Zero eligible lists is a hard failure.
func resolvePriceList(lists []PriceList, now time.Time) (PriceList, error) {
	for _, list := range lists {
		if list.Status != ListStatusActive {
			continue
		}
		if !withinWindow(now, list.ValidFrom, list.ValidTo) {
			continue
		}
		return list, nil
	}
	return PriceList{}, ErrNoActivePriceList
}

// resolveBasePrice locates the SKU line and applies quantity tier breaks.
// The returned component carries the line total (unit price times qty) and
// references the resolved price list for audit.
func resolveBasePrice(lists []PriceList, sku string, qty decimal.Decimal, now time.Time) (QuoteComponent, decimal.Decimal, error) {
	list, err := resolvePriceList(lists, now)
	if err != nil {
		return QuoteComponent{}, decimal.Zero, err
	}

	var line *PriceListLine
	for i := range list.Lines {
		if list.Lines[i].SKU == sku && list.Lines[i].Active {
			line = &list.Lines[i]
			break
		}
	}
	if line == nil {
		return QuoteComponent{}, decimal.Zero, fmt.Errorf("%w: %s", ErrSKUNotFound, sku)
	}

	unit := line.BasePrice
	// The qualifying tier with the greatest MinQty overrides the base price.
	var best *TierBreak
	for i := range line.TierBreaks {
		tier := &line.TierBreaks[i]
		if qty.LessThan(tier.MinQty) {
			continue
		}
		if tier.MaxQty != nil && qty.GreaterThan(*tier.MaxQty) {
			continue
		}
		if best == nil || tier.MinQty.GreaterThan(best.MinQty) {
			best = tier
		}
	}
	if best != nil {
		unit = best.Price
	}

	total := unit.Mul(qty)
	component := QuoteComponent{
		Type:           ComponentBase,
		Key:            sku,
		Description:    line.Description,
		Value:          total,
		CalculatedFrom: list.ID,
	}
	return component, total, nil
}
