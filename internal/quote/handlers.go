package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/valeo-erp/pricing-service/internal/common"
	"github.com/valeo-erp/pricing-service/internal/pricing"
)

// Handler exposes the quotation HTTP endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{service: cfg.Service, validate: v}
}

type createQuoteRequest struct {
	CustomerID string             `json:"customerId" validate:"required"`
	SKU        string             `json:"sku" validate:"required"`
	Qty        decimal.Decimal    `json:"qty"`
	Channel    string             `json:"channel"`
	Context    map[string]float64 `json:"context"`
}

// Create handles POST /api/v1/quotes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var body createQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.WriteError(w, common.BadRequest("invalid json body", err.Error()))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		common.WriteError(w, common.BadRequest("invalid quote request", validationDetails(err)))
		return
	}
	if body.Qty.Sign() <= 0 {
		common.WriteError(w, common.BadRequest("qty must be greater than zero", nil))
		return
	}

	createdBy, _ := common.CallerID(r.Context())
	req := pricing.QuoteRequest{
		CustomerID: strings.TrimSpace(body.CustomerID),
		SKU:        strings.TrimSpace(body.SKU),
		Qty:        body.Qty,
		Channel:    strings.TrimSpace(body.Channel),
		Context:    body.Context,
		CreatedBy:  createdBy,
	}
	result, err := h.service.Create(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": result})
}

// Get handles GET /api/v1/quotes/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.WriteError(w, common.BadRequest("quote id is required", nil))
		return
	}
	result, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}
