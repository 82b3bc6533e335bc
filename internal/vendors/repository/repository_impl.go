package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/internal/vendors/domain"
	"github.com/smallbiznis/tiffin/pkg/db/option"
	"github.com/smallbiznis/tiffin/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, vendor *domain.Vendor) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO vendors (id, name, cuisine, is_open, latitude, longitude, service_radius_km, monthly_capacity, rating, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		vendor.ID,
		vendor.Name,
		vendor.Cuisine,
		vendor.IsOpen,
		vendor.Latitude,
		vendor.Longitude,
		vendor.ServiceRadiusKm,
		vendor.MonthlyCapacity,
		vendor.Rating,
		vendor.CreatedAt,
		vendor.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Vendor, error) {
	var vendor domain.Vendor
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, cuisine, is_open, latitude, longitude, service_radius_km, monthly_capacity, rating, created_at, updated_at
		 FROM vendors WHERE id = ?`,
		id,
	).Scan(&vendor).Error
	if err != nil {
		return nil, err
	}
	if vendor.ID == 0 {
		return nil, nil
	}
	return &vendor, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Vendor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var vendors []*domain.Vendor
	err := db.WithContext(ctx).
		Model(&domain.Vendor{}).
		Where("id IN ?", ids).
		Find(&vendors).Error
	if err != nil {
		return nil, err
	}
	return vendors, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListVendorFilter, page pagination.Pagination) ([]*domain.Vendor, error) {
	var vendors []*domain.Vendor
	stmt := db.WithContext(ctx).Model(&domain.Vendor{})
	if filter.Cuisine != "" {
		stmt = stmt.Where("cuisine = ?", filter.Cuisine)
	}
	if filter.OpenOnly {
		stmt = stmt.Where("is_open = ?", true)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&vendors).Error
	if err != nil {
		return nil, err
	}
	return vendors, nil
}
