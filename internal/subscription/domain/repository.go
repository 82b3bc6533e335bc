package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *MonthlySubscription) error
	InsertMeal(ctx context.Context, db *gorm.DB, meal *MealSubscription) error

	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*MonthlySubscription, error)
	FindMealsByParent(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]MealSubscription, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*MonthlySubscription, error)

	// MarkCancelled flips an ACTIVE parent to CANCELLED in one conditional
	// update. Zero rows affected means the row is absent, foreign or already
	// terminal.
	MarkCancelled(ctx context.Context, db *gorm.DB, userID, id snowflake.ID, now time.Time) (int64, error)
	MarkMealsCancelled(ctx context.Context, db *gorm.DB, parentID snowflake.ID, now time.Time) error

	// FindIdempotencyKey ignores claims whose expires_at is at or before now.
	FindIdempotencyKey(ctx context.Context, db *gorm.DB, userID snowflake.ID, key string, now time.Time) (*IdempotencyKey, error)
	// InsertIdempotencyKey purges an expired claim for the same (user, key)
	// before inserting, so a stale row cannot trip the unique index.
	InsertIdempotencyKey(ctx context.Context, db *gorm.DB, record *IdempotencyKey) error
}
