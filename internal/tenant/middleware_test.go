package tenant

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveHeaderWinsOverSubdomain(t *testing.T) {
	r := NewResolver("", "quotes.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.quotes.example.com"
	req.Header.Set("X-Tenant-ID", "globex")
	if got := r.Resolve(req); got != "globex" {
		t.Fatalf("expected header tenant globex, got %q", got)
	}
}

func TestResolveSubdomain(t *testing.T) {
	r := NewResolver("", "quotes.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.quotes.example.com:8443"
	if got := r.Resolve(req); got != "acme" {
		t.Fatalf("expected acme, got %q", got)
	}
}

func TestMiddlewareRejectsUnresolvedTenant(t *testing.T) {
	r := NewResolver("", "quotes.example.com", "")
	handler := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("handler must not run without a tenant")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "quotes.example.com"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMiddlewareInjectsTenant(t *testing.T) {
	r := NewResolver("", "example.com", "fallback")
	var seen string
	handler := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen, _ = FromContext(req.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "fallback" {
		t.Fatalf("expected fallback tenant, got %q", seen)
	}
}
