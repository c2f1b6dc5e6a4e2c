package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Prekzursil/event-link-sub001/internal/infra/security"
)

// JWKSHandler serves the public signing keys. Resource services poll this
// endpoint to verify access tokens without calling back here.
type JWKSHandler struct{ manager *security.JWTManager }

// NewJWKSHandler wraps the signing key manager for HTTP exposure.
func NewJWKSHandler(manager *security.JWTManager) *JWKSHandler {
	return &JWKSHandler{manager: manager}
}

// etagFor derives a validator from the rendered key set. Keys rotate rarely,
// so most polls end in a 304.
func etagFor(payload []byte) string {
	sum := sha256.Sum256(payload)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

// Keys godoc
// @Summary Retrieve JSON Web Key Set
// @Description Exposes the public keys used to verify access token signatures.
// @Tags Keys
// @Produce json
// @Success 200 {object} JWKSResponse
// @Failure 500 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /.well-known/jwks.json [get]
func (h *JWKSHandler) Keys(c *gin.Context) {
	if h == nil || h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "signing keys unavailable"))
		return
	}

	payload, err := h.manager.JWKS()
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to render key set"))
		return
	}

	etag := etagFor(payload)
	c.Header("Cache-Control", jwksCacheControl)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, "application/json", payload)
}

const jwksCacheControl = "public, max-age=3600"
