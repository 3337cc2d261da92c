// Package ratelimit throttles quotation requests per tenant using a
// redis-backed sliding limiter.
package ratelimit

import (
	"net/http"
	"strconv"

	limiter "github.com/ulule/limiter/v3"

	"github.com/valeo-erp/pricing-service/internal/common"
	"github.com/valeo-erp/pricing-service/internal/tenant"
)

// KeyFunc derives the limiter key from the request.
type KeyFunc func(*http.Request) string

// TenantKey keys the limit per resolved tenant, falling back to the
// client address when no tenant is on the context.
func TenantKey(r *http.Request) string {
	if id, ok := tenant.FromContext(r.Context()); ok {
		return "quotes:" + id
	}
	return "quotes:addr:" + r.RemoteAddr
}

// Handler enforces a request rate before delegating to the next handler.
type Handler struct {
	Limiter *limiter.Limiter
	Key     KeyFunc
	OnError func(error)
}

// Middleware implements the chi middleware contract. Limiter store
// failures fail open so a redis hiccup never blocks quoting.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := TenantKey(r)
		if h.Key != nil {
			key = h.Key(r)
		}
		lctx, err := h.Limiter.Get(r.Context(), key)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "quote rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
