package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorCase pairs a sentinel with the status and message the wire sees.
type errorCase struct {
	err     error
	status  int
	message string
}

// respondError matches err against the known outcomes of an operation.
// Anything unmatched becomes a 500 with the operation's generic message, so
// internal failure detail never reaches the wire.
func respondError(c *gin.Context, err error, fallback string, cases ...errorCase) {
	for _, cs := range cases {
		if cs.err != nil && errors.Is(err, cs.err) {
			c.JSON(cs.status, NewErrorResponse(c, cs.message))
			return
		}
	}
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, fallback))
}
