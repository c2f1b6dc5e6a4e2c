package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Prekzursil/event-link-sub001/internal/usecase"
)

// RegistrationHandler exposes the account registration endpoint.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
}

func NewRegistrationHandler(registration *usecase.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// Register godoc
// @Summary Register a new user account
// @Description Creates a new user with the provided credentials and returns the first session.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body RegistrationRequest true "New account payload"
// @Success 201 {object} RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	if h.registration == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "registration service unavailable"))
		return
	}

	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	input := usecase.RegisterInput{
		Email:     strings.TrimSpace(req.Email),
		FullName:  strings.TrimSpace(req.FullName),
		Password:  req.Password,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}

	user, session, err := h.registration.RegisterUser(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, "failed to register user",
			errorCase{err: usecase.ErrEmailTaken, status: http.StatusConflict, message: "email already registered"},
			errorCase{err: usecase.ErrPasswordPolicyViolation, status: http.StatusBadRequest, message: "password does not meet requirements"},
		)
		return
	}

	resp := RegistrationResponse{
		User: newUserPayload(user),
	}

	// Session issuance is best effort; the account exists either way.
	if session != nil {
		payload := newSessionPayload(session)
		resp.Session = &payload
	}

	c.JSON(http.StatusCreated, resp)
}
