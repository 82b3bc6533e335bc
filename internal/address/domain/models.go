package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Address struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	Label     string       `json:"label,omitempty"`
	Line1     string       `json:"line1,omitempty"`
	City      string       `json:"city,omitempty"`
	Latitude  float64      `gorm:"not null" json:"latitude"`
	Longitude float64      `gorm:"not null" json:"longitude"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
