package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	addressdomain "github.com/smallbiznis/tiffin/internal/address/domain"
	"github.com/smallbiznis/tiffin/internal/capacity"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	"github.com/smallbiznis/tiffin/internal/selection"
	subscriptiondomain "github.com/smallbiznis/tiffin/internal/subscription/domain"
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string                `json:"type"`
	Message string                `json:"message"`
	Errors  []selection.Violation `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal_error")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
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

func invalidRequestError() error {
	return newValidationError("invalid_request", "invalid request")
}

func newValidationError(code, message string) error {
	return &selection.ValidationError{
		Violations: []selection.Violation{
			{
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationError(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Violations,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []selection.Violation{
				{Code: "invalid_request", Message: "invalid request"},
			},
		}
	case errors.Is(err, menudomain.ErrInvalidMealType):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []selection.Violation{
				{Code: "invalid_meal_type", Message: "meal type must be breakfast, lunch or dinner"},
			},
		}
	case errors.Is(err, menudomain.ErrNoActiveMenu):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []selection.Violation{
				{Code: "no_active_menu", Message: "vendor has no active menu for the requested meal type"},
			},
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, subscriptiondomain.ErrInvalidUser):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, capacity.ErrVendorFull):
		return http.StatusConflict, errorPayload{
			Type:    "vendor_full",
			Message: "vendor has no remaining capacity for the requested month",
		}
	case errors.Is(err, subscriptiondomain.ErrNotActive):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "subscription is not active",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationError(err error) *selection.ValidationError {
	var vErr *selection.ValidationError
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, vendordomain.ErrNotFound),
		errors.Is(err, vendordomain.ErrInvalidID),
		errors.Is(err, addressdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrInvalidID),
		errors.Is(err, capacity.ErrUnknownVendor),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog feeds the request logger the same taxonomy the error
// middleware responds with, plus the first violation code when there is one.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
