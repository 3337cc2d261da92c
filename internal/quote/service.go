// Package quote exposes quotation calculation and retrieval: it loads the
// reference snapshot, runs the pricing engine, persists the result and
// announces it on the event bus.
package quote

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/valeo-erp/pricing-service/internal/cache"
	"github.com/valeo-erp/pricing-service/internal/common"
	"github.com/valeo-erp/pricing-service/internal/events"
	"github.com/valeo-erp/pricing-service/internal/obs"
	"github.com/valeo-erp/pricing-service/internal/pricing"
	"github.com/valeo-erp/pricing-service/internal/repo"
	"github.com/valeo-erp/pricing-service/internal/tenant"
)

// RefDataSource loads the reference snapshot one calculation uses.
type RefDataSource interface {
	LoadRefData(ctx context.Context, customerID, sku string, now time.Time) (pricing.RefData, error)
}

// QuoteStore persists and retrieves quotes.
type QuoteStore interface {
	InsertQuote(ctx context.Context, quote pricing.PriceQuote) error
	GetQuote(ctx context.Context, id string) (pricing.PriceQuote, error)
}

// EventEmitter publishes domain events after a successful calculation.
type EventEmitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (repo.DomainEvent, error)
}

// Service orchestrates quote creation and retrieval.
type Service struct {
	Data   RefDataSource
	Quotes QuoteStore
	Engine *pricing.Engine
	Bus    EventEmitter
	Cache  *cache.Cache
	Log    zerolog.Logger
	// SigningSecret, when set, signs persisted quotes so downstream
	// consumers can verify a quote was issued by this service.
	SigningSecret string
	// Now allows tests to pin the clock. Defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create calculates a quote for the request, persists it and emits
// quote.calculated. Event emission is best effort: its failure is logged
// but never fails the quotation.
func (s *Service) Create(ctx context.Context, req pricing.QuoteRequest) (pricing.PriceQuote, error) {
	if req.Qty.Sign() <= 0 {
		return pricing.PriceQuote{}, common.BadRequest("qty must be greater than zero", nil)
	}
	now := s.now()

	ref, err := s.loadRefData(ctx, req, now)
	if err != nil {
		s.observeResult("error")
		return pricing.PriceQuote{}, err
	}

	result, err := s.Engine.Calculate(ctx, ref, req)
	if err != nil {
		s.observeResult("error")
		return pricing.PriceQuote{}, mapCalculationError(err)
	}

	if id, ok := tenant.FromContext(ctx); ok {
		result.TenantID = id
	}
	if s.SigningSecret != "" {
		result.Signature = s.sign(result)
	}

	if err := s.Quotes.InsertQuote(ctx, result); err != nil {
		s.observeResult("error")
		return pricing.PriceQuote{}, fmt.Errorf("persist quote: %w", err)
	}
	s.observeResult("ok")
	s.emitCalculated(ctx, result)
	return result, nil
}

// Get retrieves a quote by id. Expired quotes are reported as not found
// while the stored row is kept for audit.
func (s *Service) Get(ctx context.Context, id string) (pricing.PriceQuote, error) {
	result, err := s.Quotes.GetQuote(ctx, id)
	if err != nil {
		if errors.Is(err, pricing.ErrQuoteNotFound) {
			return pricing.PriceQuote{}, common.NotFound("QUOTE_NOT_FOUND", "quote not found", err)
		}
		return pricing.PriceQuote{}, fmt.Errorf("load quote: %w", err)
	}
	if result.Expired(s.now()) {
		s.Log.Info().Str("quote_id", id).Time("expired_at", result.ExpiresAt).Msg("expired quote requested")
		return pricing.PriceQuote{}, common.NotFound("QUOTE_NOT_FOUND", "quote not found", pricing.ErrQuoteNotFound)
	}
	return result, nil
}

func (s *Service) loadRefData(ctx context.Context, req pricing.QuoteRequest, now time.Time) (pricing.RefData, error) {
	key := cache.KeyRefData(ctx, req.CustomerID, req.SKU)
	var ref pricing.RefData
	hit, err := s.Cache.GetJSON(ctx, key, &ref)
	if err != nil {
		s.Log.Warn().Err(err).Str("key", key).Msg("refdata cache read failed")
	}
	if hit {
		return ref, nil
	}
	ref, err = s.Data.LoadRefData(ctx, req.CustomerID, req.SKU, now)
	if err != nil {
		return pricing.RefData{}, fmt.Errorf("load reference data: %w", err)
	}
	if err := s.Cache.SetJSON(ctx, key, ref); err != nil {
		s.Log.Warn().Err(err).Str("key", key).Msg("refdata cache write failed")
	}
	return ref, nil
}

func (s *Service) emitCalculated(ctx context.Context, quote pricing.PriceQuote) {
	if s.Bus == nil {
		return
	}
	payload := events.QuoteCalculated{
		TenantID:   quote.TenantID,
		QuoteID:    quote.ID,
		CustomerID: quote.CustomerID,
		SKU:        quote.SKU,
		Qty:        quote.Qty.String(),
		OccurredAt: quote.CalculatedAt.UTC().Format(time.RFC3339),
	}
	if _, err := s.Bus.Emit(ctx, events.TopicQuoteCalculated, quote.ID, payload); err != nil {
		if obs.QuoteEventsEmittedTotal != nil {
			obs.QuoteEventsEmittedTotal.WithLabelValues("error").Inc()
		}
		s.Log.Warn().Err(err).Str("quote_id", quote.ID).Msg("quote.calculated emission failed")
		return
	}
	if obs.QuoteEventsEmittedTotal != nil {
		obs.QuoteEventsEmittedTotal.WithLabelValues("ok").Inc()
	}
}

func (s *Service) observeResult(result string) {
	if obs.QuoteCalculationsTotal != nil {
		obs.QuoteCalculationsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) sign(quote pricing.PriceQuote) string {
	mac := hmac.New(sha256.New, []byte(s.SigningSecret))
	_, _ = mac.Write([]byte(quote.ID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(quote.SKU))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(quote.TotalGross.String()))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(quote.ExpiresAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(mac.Sum(nil))
}

func mapCalculationError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrNoActivePriceList):
		return common.Unprocessable("NO_ACTIVE_PRICE_LIST", "no active price list for the requested date", err)
	case errors.Is(err, pricing.ErrSKUNotFound):
		return common.NotFound("SKU_NOT_FOUND", "sku not found on the active price list", err)
	default:
		return common.Unprocessable("CALCULATION_FAILED", "quote calculation failed", err)
	}
}
