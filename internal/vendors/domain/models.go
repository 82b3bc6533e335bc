package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Vendor struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Name            string       `gorm:"not null" json:"name"`
	Cuisine         string       `gorm:"index" json:"cuisine,omitempty"`
	// no default tag: gorm would omit false on Create
	IsOpen          bool         `gorm:"not null" json:"is_open"`
	Latitude        float64      `gorm:"not null" json:"latitude"`
	Longitude       float64      `gorm:"not null" json:"longitude"`
	ServiceRadiusKm *float64     `json:"service_radius_km,omitempty"`
	MonthlyCapacity *int         `json:"monthly_capacity,omitempty"`
	Rating          float64      `gorm:"not null;default:0" json:"rating"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
