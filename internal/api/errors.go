package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/marketplace/internal/domain"
)

// ErrorResponse is the body of every non-2xx response except 401.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// unauthorized aborts with the bare 401 body. The reason of an
// authorization failure is never sent to the client.
func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}

// writeError maps a domain error to its HTTP status and body.
func writeError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		authErr       *domain.AuthorizationError
	)

	switch {
	case errors.As(err, &authErr):
		unauthorized(c)
	case errors.As(err, &validationErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:     validationErr.Error(),
			Code:      "VALIDATION_ERROR",
			Field:     validationErr.Field,
			Timestamp: time.Now(),
		})
	case errors.Is(err, domain.ErrUnknownJob):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Code:      "VALIDATION_ERROR",
			Field:     "job",
			Timestamp: time.Now(),
		})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "Internal server error",
			Code:      "INTERNAL_ERROR",
			Timestamp: time.Now(),
		})
	}
}

func outcome(err error) string {
	var (
		validationErr *domain.ValidationError
		authErr       *domain.AuthorizationError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &authErr):
		return "unauthorized"
	case errors.As(err, &validationErr):
		return "invalid"
	default:
		return "error"
	}
}
