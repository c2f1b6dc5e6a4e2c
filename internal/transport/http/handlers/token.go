package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Prekzursil/event-link-sub001/internal/usecase"
)

// TokenHandler rotates refresh tokens into fresh session pairs.
type TokenHandler struct {
	auth *usecase.AuthService
}

// NewTokenHandler builds the refresh endpoint handler.
func NewTokenHandler(auth *usecase.AuthService) *TokenHandler {
	return &TokenHandler{auth: auth}
}

// RefreshToken godoc
// @Summary Refresh an access token
// @Description Rotates the refresh token and issues a new access/refresh pair.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body TokenRefreshRequest true "Refresh request"
// @Success 200 {object} TokenRefreshResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/token/refresh [post]
func (h *TokenHandler) RefreshToken(c *gin.Context) {
	if h.auth == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "refresh token service unavailable"))
		return
	}

	var req TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refreshToken is required"))
		return
	}

	session, user, err := h.auth.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err, "failed to refresh token",
			errorCase{err: usecase.ErrInvalidRefreshToken, status: http.StatusUnauthorized, message: "invalid refresh token"},
			errorCase{err: usecase.ErrExpiredRefreshToken, status: http.StatusUnauthorized, message: "refresh token expired"},
			errorCase{err: usecase.ErrRefreshTokenUnavailable, status: http.StatusServiceUnavailable, message: "refresh tokens unavailable"},
		)
		return
	}

	response := TokenRefreshResponse{
		SessionPayload: newSessionPayload(session),
	}

	rawInclude := c.DefaultQuery("includeUser", "false")
	if strings.EqualFold(rawInclude, "true") || strings.EqualFold(rawInclude, "1") {
		payload := newUserPayload(user)
		response.User = &payload
	}

	c.JSON(http.StatusOK, response)
}
