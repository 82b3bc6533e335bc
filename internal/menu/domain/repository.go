package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, menu *Menu) error
	InsertItem(ctx context.Context, db *gorm.DB, item *MenuItem) error
	FindActive(ctx context.Context, db *gorm.DB, vendorID snowflake.ID, mealType MealType) (*Menu, error)
	FindItems(ctx context.Context, db *gorm.DB, menuID snowflake.ID) ([]MenuItem, error)
	ListByVendor(ctx context.Context, db *gorm.DB, vendorID snowflake.ID) ([]*Menu, error)
}
