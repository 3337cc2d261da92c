package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func activeSet(strategy ConflictStrategy, rules ...ConditionRule) ConditionSet {
	return ConditionSet{
		ID:               "cs-1",
		TenantID:         "t-1",
		CustomerID:       "cust-1",
		Priority:         10,
		ConflictStrategy: strategy,
		Active:           true,
		ValidFrom:        testNow.Add(-24 * time.Hour),
		Rules:            rules,
	}
}

func condReq() QuoteRequest {
	return QuoteRequest{CustomerID: "cust-1", SKU: "WHEAT-001", Qty: d("1"), Channel: "Direct"}
}

func pctRule(value string) ConditionRule {
	return ConditionRule{Type: "markup", Scope: ScopeGlobal, Method: MethodPercent, Value: d(value)}
}

func absRule(value string) ConditionRule {
	return ConditionRule{Type: "markup", Scope: ScopeGlobal, Method: MethodAbsolute, Value: d(value)}
}

func TestPercentCompoundingOrder(t *testing.T) {
	sets := []ConditionSet{activeSet(StrategyStack, pctRule("10"), pctRule("10"))}
	components, total := evaluateConditions(sets, condReq(), d("100"), testNow)

	if !total.Equal(d("21")) {
		t.Fatalf("expected cumulative adjustment 21, got %s", total)
	}
	if len(components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(components))
	}
	// the second percentage must be computed against 110, not 100
	if components[1].Basis == nil || !components[1].Basis.Equal(d("110")) {
		t.Fatalf("expected second basis 110, got %v", components[1].Basis)
	}
}

func TestMaxWinsKeepsLargestButRecordsAll(t *testing.T) {
	sets := []ConditionSet{activeSet(StrategyMaxWins, absRule("5"), absRule("20"), absRule("3"))}
	components, total := evaluateConditions(sets, condReq(), d("100"), testNow)

	if !total.Equal(d("20")) {
		t.Fatalf("expected contribution 20, got %s", total)
	}
	if len(components) != 3 {
		t.Fatalf("all applicable rules must be recorded, got %d components", len(components))
	}
}

func TestMaxWinsWithOnlyDiscounts(t *testing.T) {
	// the least negative adjustment wins; the accumulator seeds from the
	// first applicable rule rather than from zero
	sets := []ConditionSet{activeSet(StrategyMaxWins, absRule("-20"), absRule("-5"))}
	_, total := evaluateConditions(sets, condReq(), d("100"), testNow)
	if !total.Equal(d("-5")) {
		t.Fatalf("expected contribution -5, got %s", total)
	}
}

func TestStackableRuleInsideMaxWinsSet(t *testing.T) {
	stackable := absRule("7")
	stackable.Stackable = true
	sets := []ConditionSet{activeSet(StrategyMaxWins, absRule("20"), stackable)}
	_, total := evaluateConditions(sets, condReq(), d("100"), testNow)
	if !total.Equal(d("27")) {
		t.Fatalf("expected 27 (20 max + 7 stacked), got %s", total)
	}
}

func TestSetPriorityOrdering(t *testing.T) {
	second := activeSet(StrategyStack, pctRule("10"))
	second.ID = "cs-2"
	second.Priority = 20
	first := activeSet(StrategyStack, absRule("50"))
	first.Priority = 5

	// declaration order deliberately reversed: priority must win
	components, total := evaluateConditions([]ConditionSet{second, first}, condReq(), d("100"), testNow)
	if !total.Equal(d("65")) {
		t.Fatalf("expected 65 (50 abs, then 10%% of 150), got %s", total)
	}
	if components[0].CalculatedFrom != "cs-1" {
		t.Fatalf("expected lower-priority-value set first, got %s", components[0].CalculatedFrom)
	}
}

func TestRuleApplicabilityFilters(t *testing.T) {
	now := testNow
	past := testNow.Add(-2 * time.Hour)
	req := condReq()
	req.Qty = d("10")

	cases := []struct {
		name string
		rule ConditionRule
		want bool
	}{
		{"sku scope match", ConditionRule{Scope: ScopeSKU, Selector: "WHEAT-001"}, true},
		{"sku scope mismatch", ConditionRule{Scope: ScopeSKU, Selector: "CORN-001"}, false},
		{"commodity prefix", ConditionRule{Scope: ScopeCommodity, Selector: "WHEAT"}, true},
		{"commodity mismatch", ConditionRule{Scope: ScopeCommodity, Selector: "CORN"}, false},
		{"qty below min", ConditionRule{Scope: ScopeGlobal, MinQty: dp("20")}, false},
		{"qty above max", ConditionRule{Scope: ScopeGlobal, MaxQty: dp("5")}, false},
		{"qty within bounds", ConditionRule{Scope: ScopeGlobal, MinQty: dp("5"), MaxQty: dp("15")}, true},
		{"channel mismatch", ConditionRule{Scope: ScopeGlobal, Channel: "Web"}, false},
		{"channel all", ConditionRule{Scope: ScopeGlobal, Channel: "All"}, true},
		{"channel exact", ConditionRule{Scope: ScopeGlobal, Channel: "direct"}, true},
		{"window expired", ConditionRule{Scope: ScopeGlobal, ValidTo: &past}, false},
	}
	for _, tc := range cases {
		if got := ruleApplies(tc.rule, req, now); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestInapplicableRulesProduceNoComponents(t *testing.T) {
	rule := absRule("10")
	rule.Channel = "Web"
	sets := []ConditionSet{activeSet(StrategyStack, rule)}
	components, total := evaluateConditions(sets, condReq(), d("100"), testNow)
	if len(components) != 0 || !total.Equal(decimal.Zero) {
		t.Fatalf("expected no components and zero adjustment, got %d / %s", len(components), total)
	}
}

func TestOtherCustomersSetsIgnored(t *testing.T) {
	set := activeSet(StrategyStack, absRule("10"))
	set.CustomerID = "someone-else"
	_, total := evaluateConditions([]ConditionSet{set}, condReq(), d("100"), testNow)
	if !total.Equal(decimal.Zero) {
		t.Fatalf("expected zero, got %s", total)
	}
}
