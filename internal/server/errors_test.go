package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	addressdomain "github.com/smallbiznis/tiffin/internal/address/domain"
	"github.com/smallbiznis/tiffin/internal/capacity"
	"github.com/smallbiznis/tiffin/internal/selection"
	subscriptiondomain "github.com/smallbiznis/tiffin/internal/subscription/domain"
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"validation", &selection.ValidationError{Violations: []selection.Violation{{Code: "vendor_count"}}}, http.StatusBadRequest, "validation_error"},
		{"vendor full", capacity.ErrVendorFull, http.StatusConflict, "vendor_full"},
		{"not active", subscriptiondomain.ErrNotActive, http.StatusConflict, "conflict"},
		{"vendor not found", vendordomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"address not found", addressdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"subscription not found", subscriptiondomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"invalid user", subscriptiondomain.ErrInvalidUser, http.StatusUnauthorized, "unauthorized"},
		{"rate limited", ErrTooManyRequests, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, payload.Type)
		})
	}
}

func TestMapErrorCarriesViolations(t *testing.T) {
	err := &selection.ValidationError{Violations: []selection.Violation{
		{Code: "duplicate_vendor", Message: "vendor appears more than once"},
		{Code: "vendor_full", Message: "no slots"},
	}}

	status, payload := mapError(err)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 2)
	assert.Equal(t, "duplicate_vendor", payload.Errors[0].Code)
}

func TestErrorHandlingMiddlewareWritesPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, capacity.ErrVendorFull)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "vendor_full")
}

func TestUserRequiredRejectsMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := &Server{}
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/private", s.UserRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("X-User-Id", "7177921133173346304")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
