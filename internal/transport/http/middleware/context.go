package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Prekzursil/event-link-sub001/internal/infra/logger"
)

const (
	// RequestIDHeader carries the correlation id. Inbound values are kept so
	// a gateway can stitch its own ids through the service.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"

	// UserIDKey is where RequireAuth stores the authenticated subject.
	UserIDKey = "user_id"
)

// RequestScope assigns every request a correlation id, echoes it in the
// response header, and plants it in the request context so log lines from
// any layer carry it.
func RequestScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Set(requestIDKey, reqID)
		c.Writer.Header().Set(RequestIDHeader, reqID)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID returns the correlation id assigned by RequestScope, or an
// empty string when the middleware did not run.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
