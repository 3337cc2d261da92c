package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ListStatus describes the lifecycle state of a price list.
type ListStatus string

// Price list lifecycle states. Only Active lists are eligible for quotation.
const (
	ListStatusDraft    ListStatus = "Draft"
	ListStatusActive   ListStatus = "Active"
	ListStatusArchived ListStatus = "Archived"
)

// ConflictStrategy controls how rule adjustments within a condition set combine.
type ConflictStrategy string

const (
	// StrategyStack sums every applicable rule adjustment.
	StrategyStack ConflictStrategy = "Stack"
	// StrategyMaxWins keeps only the single largest rule adjustment seen.
	StrategyMaxWins ConflictStrategy = "MaxWins"
)

// AdjustMethod selects between absolute and percentage calculations.
type AdjustMethod string

const (
	MethodAbsolute AdjustMethod = "ABS"
	MethodPercent  AdjustMethod = "PCT"
)

// RuleScope narrows a rule or charge to a SKU, a commodity family, or everything.
type RuleScope string

const (
	ScopeSKU       RuleScope = "SKU"
	ScopeCommodity RuleScope = "Commodity"
	ScopeGlobal    RuleScope = "Global"
)

// ChargeKind distinguishes the reuse purposes of a TaxChargeRef row.
type ChargeKind string

const (
	KindFee       ChargeKind = "Fee"
	KindLevy      ChargeKind = "Levy"
	KindSurcharge ChargeKind = "Surcharge"
	KindVAT       ChargeKind = "VAT"
)

// ComponentType labels one line of the quote breakdown.
type ComponentType string

const (
	ComponentBase      ComponentType = "Base"
	ComponentCondition ComponentType = "Condition"
	ComponentDynamic   ComponentType = "Dynamic"
	ComponentCharge    ComponentType = "Charge"
	ComponentTax       ComponentType = "Tax"
)

// TierBreak is a quantity threshold at which a different unit price applies.
type TierBreak struct {
	MinQty decimal.Decimal  `json:"minQty"`
	MaxQty *decimal.Decimal `json:"maxQty,omitempty"`
	Price  decimal.Decimal  `json:"price"`
}

// PriceListLine holds the base price of a single SKU within a price list.
type PriceListLine struct {
	SKU         string          `json:"sku"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	Currency    string          `json:"currency"`
	UOM         string          `json:"uom"`
	Active      bool            `json:"active"`
	TierBreaks  []TierBreak     `json:"tierBreaks,omitempty"`
}

// PriceList is a tenant's time-bounded base price catalogue.
type PriceList struct {
	ID        string
	TenantID  string
	Name      string
	Status    ListStatus
	ValidFrom time.Time
	ValidTo   *time.Time
	Lines     []PriceListLine
}

// ConditionRule is one discount or markup rule inside a condition set.
type ConditionRule struct {
	ID          string
	Type        string
	Scope       RuleScope
	Selector    string
	Method      AdjustMethod
	Value       decimal.Decimal
	MinQty      *decimal.Decimal
	MaxQty      *decimal.Decimal
	Channel     string
	ValidFrom   *time.Time
	ValidTo     *time.Time
	Stackable   bool
	Description string
}

// ConditionSet is a prioritized group of customer-specific rules.
type ConditionSet struct {
	ID               string
	TenantID         string
	CustomerID       string
	Name             string
	Priority         int
	ConflictStrategy ConflictStrategy
	Active           bool
	ValidFrom        time.Time
	ValidTo          *time.Time
	Rules            []ConditionRule
}

// DynamicFormula reprices a SKU or commodity family from external context.
type DynamicFormula struct {
	ID            string
	TenantID      string
	SKU           string
	Commodity     string
	Expression    string
	Inputs        []string
	RoundDecimals int32
	Cap           *decimal.Decimal
	Active        bool
	ValidFrom     time.Time
	ValidTo       *time.Time
}

// TaxChargeRef models fees, levies, surcharges, and VAT with one row shape.
type TaxChargeRef struct {
	ID           string
	TenantID     string
	Code         string
	Name         string
	Kind         ChargeKind
	Method       AdjustMethod
	RateOrAmount decimal.Decimal
	Scope        RuleScope
	ScopeValue   string
	Active       bool
	ValidFrom    time.Time
	ValidTo      *time.Time
}

// QuoteComponent is one itemized contribution recorded for audit replay.
// Basis holds the amount a percentage was computed against.
type QuoteComponent struct {
	Type           ComponentType    `json:"type"`
	Key            string           `json:"key"`
	Description    string           `json:"description,omitempty"`
	Value          decimal.Decimal  `json:"value"`
	Basis          *decimal.Decimal `json:"basis,omitempty"`
	CalculatedFrom string           `json:"calculatedFrom"`
}

// QuoteRequest carries the caller inputs for one quotation.
type QuoteRequest struct {
	CustomerID string
	SKU        string
	Qty        decimal.Decimal
	Channel    string
	Context    map[string]float64
	CreatedBy  string
}

// PriceQuote is the immutable, persisted result of a quotation.
type PriceQuote struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"tenantId"`
	CustomerID   string           `json:"customerId"`
	SKU          string           `json:"sku"`
	Qty          decimal.Decimal  `json:"qty"`
	Channel      string           `json:"channel,omitempty"`
	Components   []QuoteComponent `json:"components"`
	TotalNet     decimal.Decimal  `json:"totalNet"`
	TotalGross   decimal.Decimal  `json:"totalGross"`
	Currency     string           `json:"currency"`
	CalculatedAt time.Time        `json:"calculatedAt"`
	ExpiresAt    time.Time        `json:"expiresAt"`
	CreatedBy    string           `json:"createdBy,omitempty"`
	Signature    string           `json:"signature,omitempty"`
}

// Expired reports whether the quote is past its validity window.
func (q PriceQuote) Expired(now time.Time) bool {
	return q.ExpiresAt.Before(now)
}

// RefData is the read-only reference snapshot one calculation evaluates against.
type RefData struct {
	PriceLists    []PriceList
	ConditionSets []ConditionSet
	Formulas      []DynamicFormula
	Charges       []TaxChargeRef
}

// CommodityOf extracts the commodity family token from a SKU, the part
// before the first separator: "WHEAT-001" -> "WHEAT".
func CommodityOf(sku string) string {
	if idx := strings.IndexByte(sku, '-'); idx > 0 {
		return sku[:idx]
	}
	return sku
}

func withinWindow(now, from time.Time, to *time.Time) bool {
	if now.Before(from) {
		return false
	}
	if to != nil && now.After(*to) {
		return false
	}
	return true
}
