package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Prekzursil/event-link-sub001/internal/transport/http/middleware"
	"github.com/Prekzursil/event-link-sub001/internal/usecase"
)

// UserHandler exposes profile endpoints for authenticated callers.
type UserHandler struct {
	users *usecase.UserService
}

func NewUserHandler(users *usecase.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me godoc
// @Summary Fetch the authenticated user's profile
// @Description Returns the account associated with the presented access token.
// @Tags User
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} UserPayload
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	if h.users == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "user service unavailable"))
		return
	}

	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	user, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to load profile",
			errorCase{err: usecase.ErrUserNotFound, status: http.StatusNotFound, message: "user not found"},
		)
		return
	}

	c.JSON(http.StatusOK, newUserPayload(*user))
}
