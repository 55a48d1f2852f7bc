package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediscan-backend/internal/faults"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithFault maps a typed fault onto an HTTP status and a
// user-safe message. Unknown errors never leak internals.
func RespondWithFault(c *gin.Context, err error) {
	kind := faults.KindOf(err)
	c.JSON(statusForKind(kind), ErrorResponse{
		ErrorCode: string(kind),
		Message:   faults.UserMessage(err),
	})
}

func statusForKind(kind faults.Kind) int {
	switch kind {
	case faults.InputError:
		return http.StatusBadRequest
	case faults.NotFound:
		return http.StatusNotFound
	case faults.DependencyUnavailable:
		return http.StatusServiceUnavailable
	case faults.ContentBlocked:
		return http.StatusUnprocessableEntity
	case faults.IntegrityError:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}
