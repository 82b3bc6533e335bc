package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, address *Address) error
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Address, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Address, error)
}
