package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/smallbiznis/authr/internal/authorization"
	"github.com/smallbiznis/authr/internal/records"
	"github.com/smallbiznis/authr/internal/storage"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	if vErr, ok := storage.AsValidationError(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   vErr.Field,
				Code:    string(vErr.Kind),
				Message: vErr.Error(),
			}},
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid request",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrUnauthenticated),
		errors.Is(err, authdomain.ErrUpstreamAuth),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, records.ErrUnknownKind):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, storage.ErrConflict),
		errors.Is(err, storage.ErrNotCreated):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, storage.ErrUnavailable),
		errors.Is(err, authdomain.ErrPendingUnavailable),
		errors.Is(err, authdomain.ErrSessionUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger; validation codes are more
// useful than the generic type.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}
