package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/tiffin/internal/subscription/domain"
	"github.com/smallbiznis/tiffin/pkg/db/option"
	"github.com/smallbiznis/tiffin/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.MonthlySubscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO monthly_subscriptions (
			id, user_id, vendor_ids, meal_type, total_price, start_date, end_date,
			status, address_id, payment_id, meal_subscription_ids, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.UserID,
		subscription.VendorIDs,
		subscription.MealType,
		subscription.TotalPrice,
		subscription.StartDate,
		subscription.EndDate,
		subscription.Status,
		subscription.AddressID,
		subscription.PaymentID,
		subscription.MealSubscriptionIDs,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) InsertMeal(ctx context.Context, db *gorm.DB, meal *subscriptiondomain.MealSubscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meal_subscriptions (
			id, user_id, vendor_id, menu_id, meal_type, price, start_date, end_date,
			status, monthly_subscription_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meal.ID,
		meal.UserID,
		meal.VendorID,
		meal.MenuID,
		meal.MealType,
		meal.Price,
		meal.StartDate,
		meal.EndDate,
		meal.Status,
		meal.MonthlySubscriptionID,
		meal.CreatedAt,
		meal.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*subscriptiondomain.MonthlySubscription, error) {
	var subscription subscriptiondomain.MonthlySubscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, vendor_ids, meal_type, total_price, start_date, end_date,
			status, address_id, payment_id, meal_subscription_ids, created_at, updated_at
		 FROM monthly_subscriptions WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindMealsByParent(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]subscriptiondomain.MealSubscription, error) {
	var meals []subscriptiondomain.MealSubscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, vendor_id, menu_id, meal_type, price, start_date, end_date,
			status, monthly_subscription_id, created_at, updated_at
		 FROM meal_subscriptions WHERE monthly_subscription_id = ? ORDER BY id`,
		parentID,
	).Scan(&meals).Error
	if err != nil {
		return nil, err
	}
	return meals, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter subscriptiondomain.ListFilter, page pagination.Pagination) ([]*subscriptiondomain.MonthlySubscription, error) {
	var subscriptions []*subscriptiondomain.MonthlySubscription
	stmt := db.WithContext(ctx).
		Model(&subscriptiondomain.MonthlySubscription{}).
		Where("user_id = ?", userID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, userID, id snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE monthly_subscriptions
		 SET status = ?, updated_at = ?
		 WHERE user_id = ? AND id = ? AND status = ?`,
		subscriptiondomain.StatusCancelled,
		now,
		userID,
		id,
		subscriptiondomain.StatusActive,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkMealsCancelled(ctx context.Context, db *gorm.DB, parentID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meal_subscriptions
		 SET status = ?, updated_at = ?
		 WHERE monthly_subscription_id = ? AND status = ?`,
		subscriptiondomain.StatusCancelled,
		now,
		parentID,
		subscriptiondomain.StatusActive,
	).Error
}

func (r *repo) FindIdempotencyKey(ctx context.Context, db *gorm.DB, userID snowflake.ID, key string, now time.Time) (*subscriptiondomain.IdempotencyKey, error) {
	var record subscriptiondomain.IdempotencyKey
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, idempotency_key, monthly_subscription_id, created_at, expires_at
		 FROM subscription_idempotency_keys
		 WHERE user_id = ? AND idempotency_key = ? AND expires_at > ?`,
		userID,
		key,
		now,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) InsertIdempotencyKey(ctx context.Context, db *gorm.DB, record *subscriptiondomain.IdempotencyKey) error {
	err := db.WithContext(ctx).Exec(
		`DELETE FROM subscription_idempotency_keys
		 WHERE user_id = ? AND idempotency_key = ? AND expires_at <= ?`,
		record.UserID,
		record.Key,
		record.CreatedAt,
	).Error
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Exec(
		`INSERT INTO subscription_idempotency_keys (id, user_id, idempotency_key, monthly_subscription_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UserID,
		record.Key,
		record.MonthlySubscriptionID,
		record.CreatedAt,
		record.ExpiresAt,
	).Error
}
