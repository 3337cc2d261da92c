package pricing

import "errors"

var (
	// ErrNoActivePriceList is returned when no tenant price list is active and
	// time-valid at the moment of quotation. Fatal; nothing is persisted.
	ErrNoActivePriceList = errors.New("no active price list")
	// ErrSKUNotFound is returned when the SKU is absent or inactive in the
	// resolved price list.
	ErrSKUNotFound = errors.New("sku not found in price list")
	// ErrQuoteNotFound covers both missing and expired quotes on retrieval.
	ErrQuoteNotFound = errors.New("quote not found")
)
