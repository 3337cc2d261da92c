package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func chargeRef(kind ChargeKind, method AdjustMethod, value string, scope RuleScope, scopeValue string) TaxChargeRef {
	return TaxChargeRef{
		ID:           "ref-" + string(kind),
		TenantID:     "t-1",
		Code:         string(kind),
		Kind:         kind,
		Method:       method,
		RateOrAmount: d(value),
		Scope:        scope,
		ScopeValue:   scopeValue,
		Active:       true,
		ValidFrom:    testNow.Add(-24 * time.Hour),
	}
}

func TestChargeCommodityScopeFiltering(t *testing.T) {
	refs := []TaxChargeRef{chargeRef(KindLevy, MethodAbsolute, "2", ScopeCommodity, "WHEAT")}

	components, total := aggregateCharges(refs, "WHEAT-001", d("10"), d("100"), testNow)
	if len(components) != 1 || !total.Equal(d("20")) {
		t.Fatalf("expected levy of 20 on WHEAT-001, got %d components / %s", len(components), total)
	}

	components, total = aggregateCharges(refs, "CORN-001", d("10"), d("100"), testNow)
	if len(components) != 0 || !total.Equal(decimal.Zero) {
		t.Fatalf("expected no levy on CORN-001, got %d components / %s", len(components), total)
	}
}

func TestChargePercentAgainstRunningPrice(t *testing.T) {
	refs := []TaxChargeRef{chargeRef(KindSurcharge, MethodPercent, "5", ScopeGlobal, "")}
	components, total := aggregateCharges(refs, "WHEAT-001", d("10"), d("200"), testNow)
	if !total.Equal(d("10")) {
		t.Fatalf("expected 5%% of 200 = 10, got %s", total)
	}
	if components[0].Basis == nil || !components[0].Basis.Equal(d("200")) {
		t.Fatalf("percentage charge must record its basis, got %v", components[0].Basis)
	}
}

func TestChargesIgnoreVATAndInactiveEntries(t *testing.T) {
	expired := testNow.Add(-time.Hour)
	vat := chargeRef(KindVAT, MethodPercent, "19", ScopeGlobal, "")
	inactive := chargeRef(KindFee, MethodAbsolute, "1", ScopeGlobal, "")
	inactive.Active = false
	stale := chargeRef(KindFee, MethodAbsolute, "1", ScopeGlobal, "")
	stale.ValidTo = &expired

	components, total := aggregateCharges([]TaxChargeRef{vat, inactive, stale}, "WHEAT-001", d("1"), d("100"), testNow)
	if len(components) != 0 || !total.Equal(decimal.Zero) {
		t.Fatalf("expected nothing aggregated, got %d components / %s", len(components), total)
	}
}

func TestVATFirstMatchOnly(t *testing.T) {
	first := chargeRef(KindVAT, MethodPercent, "19", ScopeGlobal, "")
	first.Code = "VAT19"
	second := chargeRef(KindVAT, MethodPercent, "7", ScopeGlobal, "")
	second.Code = "VAT7"

	component, tax, ok := applyVAT([]TaxChargeRef{first, second}, d("100"), testNow)
	if !ok {
		t.Fatal("expected a VAT match")
	}
	if component.Key != "VAT19" || !tax.Equal(d("19")) {
		t.Fatalf("expected first VAT entry (19), got %s / %s", component.Key, tax)
	}
	if component.Basis == nil || !component.Basis.Equal(d("100")) {
		t.Fatalf("VAT must record the net basis, got %v", component.Basis)
	}
}

func TestNoVATMeansZeroTaxNoComponent(t *testing.T) {
	_, tax, ok := applyVAT(nil, d("100"), testNow)
	if ok || !tax.Equal(decimal.Zero) {
		t.Fatalf("expected zero tax and no component, got ok=%v tax=%s", ok, tax)
	}
}
