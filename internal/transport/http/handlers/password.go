package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Prekzursil/event-link-sub001/internal/usecase"
)

// PasswordHandler exposes the password reset endpoints.
type PasswordHandler struct {
	reset *usecase.PasswordResetService
	isDev bool
}

func NewPasswordHandler(reset *usecase.PasswordResetService, isDev bool) *PasswordHandler {
	return &PasswordHandler{
		reset: reset,
		isDev: isDev,
	}
}

// RequestReset godoc
// @Summary Request a password reset
// @Description Kicks off password recovery. The response is the same whether or not the address matches an account.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body PasswordResetRequest true "Reset initiation payload"
// @Success 202 {object} PasswordResetResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/password-reset/request [post]
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	if h.reset == nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "password reset handler not configured"))
		return
	}

	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password reset request"))
		return
	}

	input := usecase.PasswordResetRequestInput{
		Email:     strings.TrimSpace(req.Email),
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}

	result, err := h.reset.RequestReset(c.Request.Context(), input)
	if err != nil {
		var rateErr *usecase.RateLimitExceededError
		if errors.As(err, &rateErr) {
			retryAfter := int(rateErr.RetryAfter.Round(time.Second) / time.Second)
			if retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(retryAfter))
			}
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many password reset requests"))
			return
		}

		if errors.Is(err, usecase.ErrPasswordResetUnavailable) {
			c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "password reset unavailable"))
			return
		}

		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to initiate password reset"))
		return
	}

	response := PasswordResetResponse{
		Message:   "If that address belongs to an account, a reset link is on its way",
		RequestID: result.RequestID,
	}

	// SECURITY: Only expose the raw token in development mode. In production
	// reset credentials travel exclusively through the mail channel.
	if h.isDev {
		if token := strings.TrimSpace(result.Token); token != "" {
			response.DevToken = &token
		}
	}

	c.JSON(http.StatusAccepted, response)
}

// ConfirmReset godoc
// @Summary Complete a password reset
// @Description Finalizes the password reset using the emailed token and sets the new password.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body PasswordResetConfirmRequest true "Reset confirmation payload"
// @Success 200 {object} PasswordResetConfirmResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/password-reset/confirm [post]
func (h *PasswordHandler) ConfirmReset(c *gin.Context) {
	if h.reset == nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "password reset handler not configured"))
		return
	}

	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid confirm reset request"))
		return
	}

	if req.NewPassword != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "password confirmation does not match"))
		return
	}

	input := usecase.PasswordResetConfirmInput{
		Token:       strings.TrimSpace(req.Token),
		NewPassword: req.NewPassword,
		IP:          c.ClientIP(),
		UserAgent:   c.GetHeader("User-Agent"),
	}

	result, err := h.reset.ConfirmReset(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, "failed to confirm password reset",
			errorCase{err: usecase.ErrPasswordResetTokenInvalid, status: http.StatusBadRequest, message: "reset token is invalid"},
			errorCase{err: usecase.ErrPasswordResetTokenUsed, status: http.StatusBadRequest, message: "reset token has already been used"},
			errorCase{err: usecase.ErrPasswordResetTokenExpired, status: http.StatusBadRequest, message: "reset token has expired"},
			errorCase{err: usecase.ErrNewPasswordInvalid, status: http.StatusBadRequest, message: "new password is invalid"},
			errorCase{err: usecase.ErrPasswordResetUnavailable, status: http.StatusServiceUnavailable, message: "password reset unavailable"},
		)
		return
	}

	c.JSON(http.StatusOK, PasswordResetConfirmResponse{
		Message:       "Password has been reset",
		ChangedAt:     result.ChangedAt,
		RevokedTokens: result.TokensRevoked,
	})
}
