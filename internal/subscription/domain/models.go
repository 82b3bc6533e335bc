package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	// StatusPending exists for payment-gated flows; direct creation always
	// lands on ACTIVE.
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
	StatusCompleted Status = "COMPLETED"
)

// IsTerminal reports whether the status can never return to ACTIVE.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusExpired, StatusCompleted:
		return true
	default:
		return false
	}
}

// MonthlySubscription is the parent bundle row. TotalPrice is tax-inclusive;
// the pre-tax shares live on the child meal subscriptions.
type MonthlySubscription struct {
	ID                  snowflake.ID                      `gorm:"primaryKey" json:"id"`
	UserID              snowflake.ID                      `gorm:"not null;index" json:"user_id"`
	VendorIDs           datatypes.JSONSlice[snowflake.ID] `gorm:"not null" json:"vendor_ids"`
	MealType            menudomain.MealType               `gorm:"not null" json:"meal_type"`
	TotalPrice          float64                           `gorm:"type:decimal(10,2);not null" json:"total_price"`
	StartDate           time.Time                         `gorm:"not null" json:"start_date"`
	EndDate             time.Time                         `gorm:"not null" json:"end_date"`
	Status              Status                            `gorm:"not null;index" json:"status"`
	AddressID           snowflake.ID                      `gorm:"not null" json:"address_id"`
	PaymentID           *string                           `json:"payment_id,omitempty"`
	MealSubscriptionIDs datatypes.JSONSlice[snowflake.ID] `gorm:"not null" json:"meal_subscription_ids"`
	CreatedAt           time.Time                         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time                         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// MealSubscription is one vendor's slice of a bundle. Price is the pre-tax
// monthly share. Rows created through a bundle only change state through
// their parent's transaction.
type MealSubscription struct {
	ID                    snowflake.ID        `gorm:"primaryKey" json:"id"`
	UserID                snowflake.ID        `gorm:"not null;index" json:"user_id"`
	VendorID              snowflake.ID        `gorm:"not null;index" json:"vendor_id"`
	MenuID                snowflake.ID        `gorm:"not null" json:"menu_id"`
	MealType              menudomain.MealType `gorm:"not null" json:"meal_type"`
	Price                 float64             `gorm:"type:decimal(10,2);not null" json:"price"`
	StartDate             time.Time           `gorm:"not null" json:"start_date"`
	EndDate               time.Time           `gorm:"not null" json:"end_date"`
	Status                Status              `gorm:"not null;index" json:"status"`
	MonthlySubscriptionID *snowflake.ID       `gorm:"index" json:"monthly_subscription_id,omitempty"`
	CreatedAt             time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// IdempotencyKey maps a caller-supplied key to the bundle it created. The
// unique (user_id, key) index makes the claim race-safe inside the creation
// transaction.
type IdempotencyKey struct {
	ID                    snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID                snowflake.ID `gorm:"not null;uniqueIndex:idx_user_idem_key,priority:1" json:"user_id"`
	// column renamed from "key": reserved word in mysql
	Key                   string       `gorm:"column:idempotency_key;not null;uniqueIndex:idx_user_idem_key,priority:2" json:"key"`
	MonthlySubscriptionID snowflake.ID `gorm:"not null" json:"monthly_subscription_id"`
	CreatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ExpiresAt             time.Time    `gorm:"not null" json:"expires_at"`
}

func (IdempotencyKey) TableName() string {
	return "subscription_idempotency_keys"
}

// SubscriptionDays is the fixed bundle length: four weeks of daily meals.
const SubscriptionDays = 28
