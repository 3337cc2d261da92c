package events

// Topic constants for domain events emitted by the quotation engine.
const (
	TopicQuoteCalculated = "quote.calculated"
)

// DefaultTopics returns the canonical list of topics that support
// webhook subscriptions.
func DefaultTopics() []string {
	return []string{TopicQuoteCalculated}
}

// QuoteCalculated is the payload announced for every successful quote.
type QuoteCalculated struct {
	TenantID   string `json:"tenantId"`
	QuoteID    string `json:"quoteId"`
	CustomerID string `json:"customerId"`
	SKU        string `json:"sku"`
	Qty        string `json:"qty"`
	OccurredAt string `json:"occurredAt"`
}
