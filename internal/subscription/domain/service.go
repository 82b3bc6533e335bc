package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/tiffin/internal/pricing"
	"github.com/smallbiznis/tiffin/pkg/db/pagination"
)

type CreateMonthlyRequest struct {
	VendorIDs      []string
	MealType       string
	StartDate      time.Time
	AddressID      string
	PaymentID      *string
	IdempotencyKey string
}

// MonthlyBundle is a parent subscription with its children, plus the quote
// used to price it. Replayed is set when an idempotency key matched an
// existing bundle instead of creating one.
type MonthlyBundle struct {
	Subscription MonthlySubscription `json:"subscription"`
	Meals        []MealSubscription  `json:"meals"`
	Pricing      *pricing.Quote      `json:"pricing,omitempty"`
	Replayed     bool                `json:"-"`
}

type GetSubscriptionRequest struct {
	ID string
}

type ListSubscriptionRequest struct {
	PageToken string
	PageSize  int32
	Status    string
}

type ListFilter struct {
	Status Status
}

type ListSubscriptionResponse struct {
	pagination.PageInfo
	Subscriptions []MonthlySubscription `json:"subscriptions"`
}

type CancelSubscriptionRequest struct {
	ID string
}

type Service interface {
	Create(context.Context, CreateMonthlyRequest) (MonthlyBundle, error)
	GetByID(context.Context, GetSubscriptionRequest) (MonthlyBundle, error)
	List(context.Context, ListSubscriptionRequest) (ListSubscriptionResponse, error)
	Cancel(context.Context, CancelSubscriptionRequest) (MonthlyBundle, error)
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrInvalidID   = errors.New("invalid_id")
	ErrNotFound    = errors.New("subscription_not_found")
	ErrNotActive   = errors.New("subscription_not_active")
)
