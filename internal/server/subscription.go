package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tiffin/internal/preview"
	"github.com/smallbiznis/tiffin/internal/selection"
	subscriptiondomain "github.com/smallbiznis/tiffin/internal/subscription/domain"
	"github.com/smallbiznis/tiffin/internal/usercontext"
	"github.com/smallbiznis/tiffin/pkg/db/pagination"
)

type monthlySelectionRequest struct {
	VendorIDs []string `json:"vendor_ids"`
	MealType  string   `json:"meal_type"`
	StartDate string   `json:"start_date"`
	AddressID string   `json:"address_id"`
	PaymentID *string  `json:"payment_id,omitempty"`
}

func (s *Server) CreateMonthlySubscription(c *gin.Context) {
	var req monthlySelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	idempotencyKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if idempotencyKey == "" {
		AbortWithError(c, newValidationError("missing_idempotency_key", "Idempotency-Key header is required"))
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()

	if s.quoteLimiter != nil && s.quoteLimiter.Enabled() {
		userID, ok := usercontext.UserIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		token, locked, lockErr := s.quoteLimiter.TryLockCreate(ctx, userID.String(), idempotencyKey)
		if lockErr == nil && !locked {
			s.obsMetrics.RecordRateLimitDenied(ctx, userID.String(), "create", "create_lock")
			AbortWithError(c, ErrConflict)
			return
		}
		if lockErr == nil {
			defer func() {
				_ = s.quoteLimiter.ReleaseCreate(ctx, userID.String(), idempotencyKey, token)
			}()
		}
	}

	resp, err := s.subscriptionSvc.Create(ctx, subscriptiondomain.CreateMonthlyRequest{
		VendorIDs:      normalizeIDs(req.VendorIDs),
		MealType:       strings.TrimSpace(req.MealType),
		StartDate:      startDate,
		AddressID:      strings.TrimSpace(req.AddressID),
		PaymentID:      req.PaymentID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"data": resp})
}

func (s *Server) ValidateMonthlySelection(c *gin.Context) {
	var req monthlySelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	vendorIDs, err := parseVendorIDs(req.VendorIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	addressID, err := snowflake.ParseString(strings.TrimSpace(req.AddressID))
	if err != nil {
		AbortWithError(c, newValidationError("invalid_address_id", "address id is not valid"))
		return
	}

	delivery, err := s.addressSvc.Resolve(ctx, userID, addressID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.selectionSvc.Report(ctx, selection.Request{
		VendorIDs: vendorIDs,
		MealType:  strings.TrimSpace(req.MealType),
		StartDate: startDate,
		Delivery:  delivery,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) PreviewMonthlySubscription(c *gin.Context) {
	var req monthlySelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()

	if s.quoteLimiter != nil && s.quoteLimiter.Enabled() {
		userID, ok := usercontext.UserIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		allowed, limitErr := s.quoteLimiter.AllowQuote(ctx, userID.String())
		if limitErr == nil && !allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, userID.String(), "preview", "quote_rate")
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		if limitErr == nil {
			s.obsMetrics.RecordRateLimitAllowed(ctx, userID.String(), "preview")
		}
	}

	quote, err := s.previewGen.Generate(ctx, preview.Request{
		VendorIDs: normalizeIDs(req.VendorIDs),
		MealType:  strings.TrimSpace(req.MealType),
		StartDate: startDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.List(c.Request.Context(), subscriptiondomain.ListSubscriptionRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Status:    strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	resp, err := s.subscriptionSvc.GetByID(c.Request.Context(), subscriptiondomain.GetSubscriptionRequest{
		ID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	resp, err := s.subscriptionSvc.Cancel(c.Request.Context(), subscriptiondomain.CancelSubscriptionRequest{
		ID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, newValidationError("invalid_start_date", "start_date must be formatted as YYYY-MM-DD")
	}
	return t.UTC(), nil
}

func parseVendorIDs(raw []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(raw))
	for _, v := range raw {
		id, err := snowflake.ParseString(strings.TrimSpace(v))
		if err != nil {
			return nil, newValidationError("invalid_vendor_id", "vendor id "+strconv.Quote(v)+" is not valid")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func normalizeIDs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
