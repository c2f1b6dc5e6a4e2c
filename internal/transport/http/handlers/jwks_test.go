package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prekzursil/event-link-sub001/internal/infra/security"
)

func newJWKSRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider, err := security.NewEphemeralKeyProvider()
	require.NoError(t, err)

	handler := NewJWKSHandler(security.NewJWTManager(provider))

	router := gin.New()
	router.GET("/.well-known/jwks.json", handler.Keys)
	return router
}

func TestJWKSServesRSAKeyWithCacheHeaders(t *testing.T) {
	router := newJWKSRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rr.Header().Get("ETag"))

	var payload JWKSResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Keys, 1)
	assert.Equal(t, "RSA", payload.Keys[0].Kty)
	assert.Equal(t, "RS256", payload.Keys[0].Alg)
	assert.Equal(t, "sig", payload.Keys[0].Use)
	assert.NotEmpty(t, payload.Keys[0].Kid)
	assert.NotEmpty(t, payload.Keys[0].N)
	assert.NotEmpty(t, payload.Keys[0].E)
}

func TestJWKSRevalidationReturnsNotModified(t *testing.T) {
	router := newJWKSRouter(t)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, first.Code)

	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	req.Header.Set("If-None-Match", etag)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, req)

	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.Bytes())
}

func TestJWKSUnavailableWithoutManager(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := NewJWKSHandler(nil)
	router := gin.New()
	router.GET("/.well-known/jwks.json", handler.Keys)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
