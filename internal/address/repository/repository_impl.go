package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/internal/address/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, address *domain.Address) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO addresses (id, user_id, label, line1, city, latitude, longitude, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		address.ID,
		address.UserID,
		address.Label,
		address.Line1,
		address.City,
		address.Latitude,
		address.Longitude,
		address.CreatedAt,
		address.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Address, error) {
	var address domain.Address
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, label, line1, city, latitude, longitude, created_at, updated_at
		 FROM addresses WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&address).Error
	if err != nil {
		return nil, err
	}
	if address.ID == 0 {
		return nil, nil
	}
	return &address, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.Address, error) {
	var addresses []*domain.Address
	err := db.WithContext(ctx).
		Model(&domain.Address{}).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}
