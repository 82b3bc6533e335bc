package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/internal/menu/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, menu *domain.Menu) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO menus (id, vendor_id, meal_type, is_active, weekly_plan, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		menu.ID,
		menu.VendorID,
		menu.MealType,
		menu.IsActive,
		menu.WeeklyPlan,
		menu.CreatedAt,
		menu.UpdatedAt,
	).Error
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.MenuItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO menu_items (id, menu_id, name, price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.MenuID,
		item.Name,
		item.Price,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, vendorID snowflake.ID, mealType domain.MealType) (*domain.Menu, error) {
	var menu domain.Menu
	err := db.WithContext(ctx).Raw(
		`SELECT id, vendor_id, meal_type, is_active, weekly_plan, created_at, updated_at
		 FROM menus WHERE vendor_id = ? AND meal_type = ? AND is_active = ?`,
		vendorID,
		mealType,
		true,
	).Scan(&menu).Error
	if err != nil {
		return nil, err
	}
	if menu.ID == 0 {
		return nil, nil
	}
	return &menu, nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, menuID snowflake.ID) ([]domain.MenuItem, error) {
	var items []domain.MenuItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, menu_id, name, price, created_at, updated_at
		 FROM menu_items WHERE menu_id = ? ORDER BY id`,
		menuID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByVendor(ctx context.Context, db *gorm.DB, vendorID snowflake.ID) ([]*domain.Menu, error) {
	var menus []*domain.Menu
	err := db.WithContext(ctx).
		Model(&domain.Menu{}).
		Where("vendor_id = ?", vendorID).
		Order("created_at desc, id desc").
		Find(&menus).Error
	if err != nil {
		return nil, err
	}
	return menus, nil
}
