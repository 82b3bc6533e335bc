package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
)

var ErrInvalidMealType = errors.New("invalid_meal_type")

func ParseMealType(value string) (MealType, error) {
	switch MealType(strings.ToLower(strings.TrimSpace(value))) {
	case MealTypeBreakfast:
		return MealTypeBreakfast, nil
	case MealTypeLunch:
		return MealTypeLunch, nil
	case MealTypeDinner:
		return MealTypeDinner, nil
	default:
		return "", ErrInvalidMealType
	}
}

// DayPlan is the plan for a single weekday.
type DayPlan struct {
	Items  []string `json:"items"`
	Sides  []string `json:"sides,omitempty"`
	Extras []string `json:"extras,omitempty"`
}

// WeeklyPlan covers exactly the seven weekdays. The closed struct keeps
// malformed day keys out of stored plans.
type WeeklyPlan struct {
	Monday    DayPlan `json:"monday"`
	Tuesday   DayPlan `json:"tuesday"`
	Wednesday DayPlan `json:"wednesday"`
	Thursday  DayPlan `json:"thursday"`
	Friday    DayPlan `json:"friday"`
	Saturday  DayPlan `json:"saturday"`
	Sunday    DayPlan `json:"sunday"`
}

// Days returns the plan in Monday-first order.
func (p WeeklyPlan) Days() []DayPlan {
	return []DayPlan{p.Monday, p.Tuesday, p.Wednesday, p.Thursday, p.Friday, p.Saturday, p.Sunday}
}

// Weekdays returns weekday names aligned with Days.
func Weekdays() []string {
	return []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
}

// IsEmpty reports whether no day carries any item.
func (p WeeklyPlan) IsEmpty() bool {
	for _, day := range p.Days() {
		if len(day.Items) > 0 {
			return false
		}
	}
	return true
}

type Menu struct {
	ID         snowflake.ID                   `gorm:"primaryKey" json:"id"`
	VendorID   snowflake.ID                   `gorm:"not null;index" json:"vendor_id"`
	MealType   MealType                       `gorm:"not null;index" json:"meal_type"`
	IsActive   bool                           `gorm:"not null;default:false" json:"is_active"`
	WeeklyPlan datatypes.JSONType[WeeklyPlan] `gorm:"not null" json:"weekly_plan"`
	Items      []MenuItem                     `gorm:"-" json:"items,omitempty"`
	CreatedAt  time.Time                      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time                      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

type MenuItem struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	MenuID    snowflake.ID `gorm:"not null;index" json:"menu_id"`
	Name      string       `gorm:"not null" json:"name"`
	Price     *float64     `json:"price,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
