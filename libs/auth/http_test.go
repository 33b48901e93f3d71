package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func captureIdentity(got *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareTrustsGatewayHeadersWithoutVerifier(t *testing.T) {
	var got Identity
	h := Middleware(nil, nil)(captureIdentity(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "staff-1")
	req.Header.Set(HeaderRole, "Staff")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Identity{UserID: "staff-1", Role: "staff"}, got)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRequiresBearerWhenVerifierEnabled(t *testing.T) {
	v := NewVerifier(VerifierConfig{HMACSecret: "s"})
	var got Identity
	h := Middleware(v, nil)(captureIdentity(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "spoofed")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := SignHS256(claimsFor("vet-2", "provider", time.Hour), "s")
	assert.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Identity{UserID: "vet-2", Role: "provider"}, got)
}
