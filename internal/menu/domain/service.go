package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// ActiveMenu returns the single active menu with its items for the
	// (vendor, mealType) pair, or ErrNoActiveMenu.
	ActiveMenu(ctx context.Context, vendorID snowflake.ID, mealType MealType) (*Menu, error)
	ListByVendor(ctx context.Context, vendorID snowflake.ID) ([]*Menu, error)
}

var ErrNoActiveMenu = errors.New("no_active_menu")
