package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valeo-erp/pricing-service/internal/formula"
)

// matchFormula finds at most one applicable dynamic formula: an exact SKU
// match wins over a commodity-prefix match.
func matchFormula(formulas []DynamicFormula, sku string, now time.Time) *DynamicFormula {
	var byCommodity *DynamicFormula
	commodity := CommodityOf(sku)
	for i := range formulas {
		f := &formulas[i]
		if !f.Active || !withinWindow(now, f.ValidFrom, f.ValidTo) {
			continue
		}
		if f.SKU != "" && f.SKU == sku {
			return f
		}
		if byCommodity == nil && f.Commodity != "" && f.Commodity == commodity {
			byCommodity = f
		}
	}
	return byCommodity
}

// applyFormula evaluates the matched formula and returns the replacement
// running price. The rounded value times qty replaces whatever the base and
// condition stages produced; their components stay in the breakdown for
// audit. Evaluation failure aborts the calculation.
func applyFormula(ctx context.Context, eval formula.Evaluator, f DynamicFormula, req QuoteRequest) (QuoteComponent, decimal.Decimal, error) {
	result, err := eval.Evaluate(ctx, formula.Spec{
		Expression:    f.Expression,
		Inputs:        f.Inputs,
		RoundDecimals: f.RoundDecimals,
		Cap:           f.Cap,
	}, req.Context)
	if err != nil {
		return QuoteComponent{}, decimal.Zero, fmt.Errorf("dynamic formula %s: %w", f.ID, err)
	}

	override := result.Rounded.Mul(req.Qty)
	raw := result.Raw
	component := QuoteComponent{
		Type:           ComponentDynamic,
		Key:            f.ID,
		Description:    "dynamic repricing",
		Value:          override,
		Basis:          &raw,
		CalculatedFrom: f.ID,
	}
	return component, override, nil
}
