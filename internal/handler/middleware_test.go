package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protectedHandler(secret string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return APIKeyMiddleware(secret)(ok)
}

func TestAPIKeyMiddlewareDisabledWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	protectedHandler("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyMiddlewareMissingKey(t *testing.T) {
	rec := httptest.NewRecorder()
	protectedHandler("secret").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyMiddlewareInvalidKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/tenants", nil)
	req.Header.Set("X-API-Key", "not-a-jwt")
	rec := httptest.NewRecorder()
	protectedHandler("secret").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyMiddlewareWrongSecret(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tenants", nil)
	req.Header.Set("X-API-Key", token)
	rec := httptest.NewRecorder()
	protectedHandler("secret").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyMiddlewareValidKey(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tenants", nil)
	req.Header.Set("X-API-Key", token)
	rec := httptest.NewRecorder()
	protectedHandler("secret").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyMiddlewareExpiredKey(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tenants", nil)
	req.Header.Set("X-API-Key", token)
	rec := httptest.NewRecorder()
	protectedHandler("secret").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
