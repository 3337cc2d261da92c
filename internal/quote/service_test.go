package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/valeo-erp/pricing-service/internal/common"
	"github.com/valeo-erp/pricing-service/internal/events"
	"github.com/valeo-erp/pricing-service/internal/formula"
	"github.com/valeo-erp/pricing-service/internal/pricing"
	"github.com/valeo-erp/pricing-service/internal/repo"
	"github.com/valeo-erp/pricing-service/internal/tenant"
)

var serviceNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type stubData struct {
	ref   pricing.RefData
	err   error
	calls int
}

func (s *stubData) LoadRefData(_ context.Context, _, _ string, _ time.Time) (pricing.RefData, error) {
	s.calls++
	return s.ref, s.err
}

type stubQuotes struct {
	inserted  []pricing.PriceQuote
	insertErr error
	stored    pricing.PriceQuote
	getErr    error
}

func (s *stubQuotes) InsertQuote(_ context.Context, q pricing.PriceQuote) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, q)
	return nil
}

func (s *stubQuotes) GetQuote(_ context.Context, _ string) (pricing.PriceQuote, error) {
	if s.getErr != nil {
		return pricing.PriceQuote{}, s.getErr
	}
	return s.stored, nil
}

type stubBus struct {
	topics   []string
	payloads []any
	err      error
}

func (s *stubBus) Emit(_ context.Context, topic, _ string, payload any) (repo.DomainEvent, error) {
	s.topics = append(s.topics, topic)
	s.payloads = append(s.payloads, payload)
	return repo.DomainEvent{ID: 1, Topic: topic}, s.err
}

type noopEvaluator struct{}

func (noopEvaluator) Evaluate(context.Context, formula.Spec, map[string]float64) (formula.Result, error) {
	return formula.Result{}, errors.New("no formula expected")
}

func simpleRefData() pricing.RefData {
	return pricing.RefData{
		PriceLists: []pricing.PriceList{{
			ID:        "pl-1",
			Status:    pricing.ListStatusActive,
			ValidFrom: serviceNow.Add(-time.Hour),
			Lines: []pricing.PriceListLine{{
				SKU:       "WHEAT-001",
				BasePrice: d("10"),
				Currency:  "EUR",
				Active:    true,
			}},
		}},
	}
}

func testService(data *stubData, quotes *stubQuotes, bus *stubBus) *Service {
	return &Service{
		Data:   data,
		Quotes: quotes,
		Engine: &pricing.Engine{
			Evaluator: noopEvaluator{},
			Currency:  "EUR",
			QuoteTTL:  24 * time.Hour,
			Now:       func() time.Time { return serviceNow },
		},
		Bus: bus,
		Log: zerolog.Nop(),
		Now: func() time.Time { return serviceNow },
	}
}

func quoteReq() pricing.QuoteRequest {
	return pricing.QuoteRequest{CustomerID: "cust-1", SKU: "WHEAT-001", Qty: d("10")}
}

func TestCreatePersistsAndEmits(t *testing.T) {
	data := &stubData{ref: simpleRefData()}
	quotes := &stubQuotes{}
	bus := &stubBus{}
	svc := testService(data, quotes, bus)

	ctx := tenant.WithTenant(context.Background(), "acme")
	result, err := svc.Create(ctx, quoteReq())
	require.NoError(t, err)
	require.Equal(t, "acme", result.TenantID)
	require.True(t, result.TotalGross.Equal(d("100")))
	require.Len(t, quotes.inserted, 1)
	require.Equal(t, []string{events.TopicQuoteCalculated}, bus.topics)

	payload, ok := bus.payloads[0].(events.QuoteCalculated)
	require.True(t, ok)
	require.Equal(t, result.ID, payload.QuoteID)
	require.Equal(t, "10", payload.Qty)
}

func TestCreateEmitFailureDoesNotFailQuote(t *testing.T) {
	data := &stubData{ref: simpleRefData()}
	quotes := &stubQuotes{}
	bus := &stubBus{err: errors.New("broker down")}
	svc := testService(data, quotes, bus)

	_, err := svc.Create(context.Background(), quoteReq())
	require.NoError(t, err)
	require.Len(t, quotes.inserted, 1)
}

func TestCreateNoActivePriceListIsUnprocessable(t *testing.T) {
	data := &stubData{ref: pricing.RefData{}}
	quotes := &stubQuotes{}
	svc := testService(data, quotes, &stubBus{})

	_, err := svc.Create(context.Background(), quoteReq())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NO_ACTIVE_PRICE_LIST", appErr.Code)
	require.Equal(t, 422, appErr.HTTPStatus)
	require.Empty(t, quotes.inserted, "nothing persisted on failure")
}

func TestCreateUnknownSKUIsNotFound(t *testing.T) {
	ref := simpleRefData()
	data := &stubData{ref: ref}
	svc := testService(data, &stubQuotes{}, &stubBus{})

	req := quoteReq()
	req.SKU = "CORN-001"
	_, err := svc.Create(context.Background(), req)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "SKU_NOT_FOUND", appErr.Code)
	require.Equal(t, 404, appErr.HTTPStatus)
}

func TestCreateRejectsNonPositiveQty(t *testing.T) {
	svc := testService(&stubData{}, &stubQuotes{}, &stubBus{})
	req := quoteReq()
	req.Qty = decimal.Zero
	_, err := svc.Create(context.Background(), req)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 400, appErr.HTTPStatus)
}

func TestCreateSignsQuoteWhenSecretSet(t *testing.T) {
	data := &stubData{ref: simpleRefData()}
	quotes := &stubQuotes{}
	svc := testService(data, quotes, &stubBus{})
	svc.SigningSecret = "sign-me"

	result, err := svc.Create(context.Background(), quoteReq())
	require.NoError(t, err)
	require.NotEmpty(t, result.Signature)
	require.Equal(t, result.Signature, quotes.inserted[0].Signature)
}

func TestGetReturnsStoredQuote(t *testing.T) {
	stored := pricing.PriceQuote{ID: "q-1", ExpiresAt: serviceNow.Add(time.Hour)}
	svc := testService(&stubData{}, &stubQuotes{stored: stored}, &stubBus{})

	result, err := svc.Get(context.Background(), "q-1")
	require.NoError(t, err)
	require.Equal(t, "q-1", result.ID)
}

func TestGetExpiredQuoteIsNotFound(t *testing.T) {
	stored := pricing.PriceQuote{ID: "q-1", ExpiresAt: serviceNow.Add(-time.Millisecond)}
	svc := testService(&stubData{}, &stubQuotes{stored: stored}, &stubBus{})

	_, err := svc.Get(context.Background(), "q-1")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "QUOTE_NOT_FOUND", appErr.Code)
	require.ErrorIs(t, err, pricing.ErrQuoteNotFound)
}

func TestGetQuoteAtExactExpiryStillServed(t *testing.T) {
	stored := pricing.PriceQuote{ID: "q-1", ExpiresAt: serviceNow}
	svc := testService(&stubData{}, &stubQuotes{stored: stored}, &stubBus{})

	_, err := svc.Get(context.Background(), "q-1")
	require.NoError(t, err, "expiry is exclusive of the boundary instant")
}

func TestGetMissingQuoteMapsNotFound(t *testing.T) {
	svc := testService(&stubData{}, &stubQuotes{getErr: pricing.ErrQuoteNotFound}, &stubBus{})
	_, err := svc.Get(context.Background(), "nope")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 404, appErr.HTTPStatus)
}
