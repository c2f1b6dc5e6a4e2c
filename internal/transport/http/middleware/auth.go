package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Prekzursil/event-link-sub001/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func newErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{Error: message, RequestID: GetRequestID(c)}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, message))
}

var (
	errNoAuthHeader  = errors.New("missing authorization header")
	errBadAuthScheme = errors.New("authorization header must use the Bearer scheme")
	errEmptyToken    = errors.New("missing access token")
)

// bearerToken extracts the token from an Authorization header value. The
// scheme comparison is case-insensitive per RFC 9110.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoAuthHeader
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errBadAuthScheme
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", errEmptyToken
	}
	return token, nil
}

// RequireAuth verifies the access token and plants the caller identity in
// the request context for handlers behind it.
func RequireAuth(authService *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		claims, err := authService.ParseAccessToken(token)
		switch {
		case errors.Is(err, usecase.ErrExpiredAccessToken):
			abortUnauthorized(c, "access token expired")
			return
		case errors.Is(err, usecase.ErrInvalidAccessToken):
			abortUnauthorized(c, "invalid access token")
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "authentication failed"))
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// GetAuthenticatedUserID reads the user id planted by RequireAuth.
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}
