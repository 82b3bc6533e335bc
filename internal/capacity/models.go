package capacity

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// VendorCapacityPeriod is the per-vendor monthly reservation ledger. One row
// per (vendor, period); the reserved counter only moves through conditional
// updates so two concurrent subscriptions can never both take the last slot.
type VendorCapacityPeriod struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	VendorID    snowflake.ID `gorm:"not null;uniqueIndex:idx_vendor_period,priority:1" json:"vendor_id"`
	PeriodStart time.Time    `gorm:"not null;uniqueIndex:idx_vendor_period,priority:2" json:"period_start"`
	PeriodEnd   time.Time    `gorm:"not null" json:"period_end"`
	Reserved    int          `gorm:"not null;default:0" json:"reserved"`
	MaxSlots    int          `gorm:"not null" json:"max_slots"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (VendorCapacityPeriod) TableName() string {
	return "vendor_capacity_periods"
}

// MonthWindow returns the calendar-month period containing t, in UTC.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
