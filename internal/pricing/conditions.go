package pricing

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var percentDivisor = decimal.NewFromInt(100)

// evaluateConditions walks the customer's condition sets in ascending
// priority order and returns the total adjustment together with one
// component per applicable rule. Every applicable rule is recorded even
// when the set's conflict strategy discards its numeric contribution.
func evaluateConditions(sets []ConditionSet, req QuoteRequest, base decimal.Decimal, now time.Time) ([]QuoteComponent, decimal.Decimal) {
	ordered := make([]ConditionSet, 0, len(sets))
	for _, set := range sets {
		if !set.Active || set.CustomerID != req.CustomerID {
			continue
		}
		if !withinWindow(now, set.ValidFrom, set.ValidTo) {
			continue
		}
		ordered = append(ordered, set)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	var components []QuoteComponent
	total := decimal.Zero

	for _, set := range ordered {
		setAcc := decimal.Zero
		seeded := false

		for _, rule := range set.Rules {
			if !ruleApplies(rule, req, now) {
				continue
			}

			var adjustment decimal.Decimal
			component := QuoteComponent{
				Type:           ComponentCondition,
				Key:            set.ID + "/" + rule.Type,
				Description:    rule.Description,
				CalculatedFrom: set.ID,
			}
			switch rule.Method {
			case MethodPercent:
				// Percentage rules compound against the running total
				// including every adjustment applied so far.
				basis := base.Add(total).Add(setAcc)
				adjustment = rule.Value.Div(percentDivisor).Mul(basis)
				component.Basis = &basis
			default:
				adjustment = rule.Value.Mul(req.Qty)
			}
			component.Value = adjustment
			components = append(components, component)

			if set.ConflictStrategy == StrategyStack || rule.Stackable {
				setAcc = setAcc.Add(adjustment)
				seeded = true
				continue
			}
			// MaxWins keeps only the single largest adjustment seen in the set.
			if !seeded || adjustment.GreaterThan(setAcc) {
				setAcc = adjustment
			}
			seeded = true
		}

		total = total.Add(setAcc)
	}
	return components, total
}

func ruleApplies(rule ConditionRule, req QuoteRequest, now time.Time) bool {
	switch rule.Scope {
	case ScopeSKU:
		if rule.Selector != req.SKU {
			return false
		}
	case ScopeCommodity:
		if !strings.HasPrefix(req.SKU, rule.Selector) {
			return false
		}
	}
	if rule.MinQty != nil && req.Qty.LessThan(*rule.MinQty) {
		return false
	}
	if rule.MaxQty != nil && req.Qty.GreaterThan(*rule.MaxQty) {
		return false
	}
	if ch := strings.TrimSpace(rule.Channel); ch != "" && !strings.EqualFold(ch, "All") {
		if !strings.EqualFold(ch, req.Channel) {
			return false
		}
	}
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return false
	}
	if rule.ValidTo != nil && now.After(*rule.ValidTo) {
		return false
	}
	return true
}
