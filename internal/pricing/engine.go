// Package pricing implements the quotation engine: five independent pricing
// stages folded into one auditable, time-bounded quote.
package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/valeo-erp/pricing-service/internal/formula"
)

// Stage names reported to the duration metric hook.
const (
	StageBase       = "base"
	StageConditions = "conditions"
	StageDynamic    = "dynamic"
	StageCharges    = "charges"
	StageTax        = "tax"
)

// stageResult is one stage's contribution: its component delta and the new
// running price the next stage consumes.
type stageResult struct {
	components []QuoteComponent
	running    decimal.Decimal
}

type stage struct {
	name string
	run  func(running decimal.Decimal) (stageResult, error)
}

// Engine folds the pricing stages over a reference-data snapshot. It holds
// no mutable state and is safe for concurrent use.
type Engine struct {
	Evaluator formula.Evaluator
	Currency  string
	QuoteTTL  time.Duration
	// Now allows tests to pin the evaluation instant. Defaults to time.Now.
	Now func() time.Time
	// ObserveStage, when set, receives per-stage wall time.
	ObserveStage func(stage string, elapsed time.Duration)
}

// Calculate runs the full pipeline for one request. Stages execute strictly
// in order, each consuming the prior stage's running price; any stage
// failure aborts the calculation with nothing persisted.
func (e *Engine) Calculate(ctx context.Context, ref RefData, req QuoteRequest) (PriceQuote, error) {
	now := e.now()

	stages := []stage{
		{StageBase, func(decimal.Decimal) (stageResult, error) {
			component, total, err := resolveBasePrice(ref.PriceLists, req.SKU, req.Qty, now)
			if err != nil {
				return stageResult{}, err
			}
			return stageResult{components: []QuoteComponent{component}, running: total}, nil
		}},
		{StageConditions, func(running decimal.Decimal) (stageResult, error) {
			components, adjustment := evaluateConditions(ref.ConditionSets, req, running, now)
			return stageResult{components: components, running: running.Add(adjustment)}, nil
		}},
		{StageDynamic, func(running decimal.Decimal) (stageResult, error) {
			f := matchFormula(ref.Formulas, req.SKU, now)
			if f == nil {
				return stageResult{running: running}, nil
			}
			component, override, err := applyFormula(ctx, e.Evaluator, *f, req)
			if err != nil {
				return stageResult{}, err
			}
			return stageResult{components: []QuoteComponent{component}, running: override}, nil
		}},
		{StageCharges, func(running decimal.Decimal) (stageResult, error) {
			components, total := aggregateCharges(ref.Charges, req.SKU, req.Qty, running, now)
			return stageResult{components: components, running: running.Add(total)}, nil
		}},
		{StageTax, func(running decimal.Decimal) (stageResult, error) {
			component, tax, taxed := applyVAT(ref.Charges, running, now)
			if !taxed {
				return stageResult{running: running}, nil
			}
			return stageResult{components: []QuoteComponent{component}, running: running.Add(tax)}, nil
		}},
	}

	running := decimal.Zero
	net := decimal.Zero
	var components []QuoteComponent
	for _, st := range stages {
		if st.name == StageTax {
			net = running
		}
		started := time.Now()
		result, err := st.run(running)
		e.observe(st.name, started)
		if err != nil {
			return PriceQuote{}, err
		}
		components = append(components, result.components...)
		running = result.running
	}

	quote := PriceQuote{
		ID:           uuid.NewString(),
		CustomerID:   req.CustomerID,
		SKU:          req.SKU,
		Qty:          req.Qty,
		Channel:      req.Channel,
		Components:   components,
		TotalNet:     net.Round(2),
		TotalGross:   running.Round(2),
		Currency:     e.currency(),
		CalculatedAt: now,
		ExpiresAt:    now.Add(e.ttl()),
		CreatedBy:    req.CreatedBy,
	}
	return quote, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) currency() string {
	if e.Currency == "" {
		return "EUR"
	}
	return e.Currency
}

func (e *Engine) ttl() time.Duration {
	if e.QuoteTTL <= 0 {
		return 24 * time.Hour
	}
	return e.QuoteTTL
}

func (e *Engine) observe(name string, started time.Time) {
	if e.ObserveStage != nil {
		e.ObserveStage(name, time.Since(started))
	}
}
