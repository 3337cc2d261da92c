package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/valeo-erp/pricing-service/internal/common"
)

const testSecret = "test-secret-0123456789"

func signedToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func callerCapture(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := common.CallerID(r.Context())
		*captured = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentifyAttachesSubject(t *testing.T) {
	var caller string
	handler := New(testSecret).Identify(callerCapture(&caller))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "trader-7"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "trader-7", caller)
}

func TestIdentifyPassesThroughWithoutToken(t *testing.T) {
	var caller string
	handler := New(testSecret).Identify(callerCapture(&caller))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, caller)
}

func TestIdentifyIgnoresForgedToken(t *testing.T) {
	var caller string
	handler := New(testSecret).Identify(callerCapture(&caller))

	forged, err := jwt.NewBuilder().Subject("intruder").Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(forged, jwt.WithKey(jwa.HS256, []byte("wrong-secret")))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
	req.Header.Set("Authorization", "Bearer "+string(signed))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, caller, "invalid tokens must not attach an identity")
}

func TestRequireRejectsMissingToken(t *testing.T) {
	handler := New(testSecret).Require(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
