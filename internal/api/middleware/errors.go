package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/tripdesk/tripdesk/internal/core/gateway"
)

// ErrorHandler is the shared error-shaping boundary: any error a handler
// attached to the context is translated to a final status and JSON body
// after the chain runs.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		status, body := ShapeError(c.Errors.Last().Err)
		c.JSON(status, body)
	}
}

// ShapeError maps an error to its response status and body. Gateway
// errors carry their own status; unique-constraint violations from the
// driver become conflicts; everything else is opaque.
func ShapeError(err error) (int, gin.H) {
	if ge, ok := gateway.AsError(err); ok {
		body := gin.H{"error": ge.Message}
		if ge.Details != nil {
			body["details"] = ge.Details
		}
		return ge.Status, body
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return http.StatusConflict, gin.H{"error": "record already exists"}
	}

	return http.StatusInternalServerError, gin.H{"error": err.Error()}
}
