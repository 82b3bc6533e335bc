package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	addressdomain "github.com/smallbiznis/tiffin/internal/address/domain"
	"github.com/smallbiznis/tiffin/internal/capacity"
	"github.com/smallbiznis/tiffin/internal/clock"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	"github.com/smallbiznis/tiffin/internal/observability/metrics"
	"github.com/smallbiznis/tiffin/internal/pricing"
	"github.com/smallbiznis/tiffin/internal/selection"
	subscriptiondomain "github.com/smallbiznis/tiffin/internal/subscription/domain"
	"github.com/smallbiznis/tiffin/internal/usercontext"
	"github.com/smallbiznis/tiffin/pkg/db"
	"github.com/smallbiznis/tiffin/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const idempotencyTTL = 24 * time.Hour

// errIdempotencyRace marks losing the claim race; the winner's bundle is
// replayed outside the failed transaction.
var errIdempotencyRace = errors.New("idempotency_claim_race")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      subscriptiondomain.Repository
	Addresses addressdomain.Service
	Selection *selection.Validator
	Pricing   *pricing.Calculator
	Capacity  capacity.Allocator
	Clock     clock.Clock
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      subscriptiondomain.Repository
	addresses addressdomain.Service
	selection *selection.Validator
	pricing   *pricing.Calculator
	capacity  capacity.Allocator
	clock     clock.Clock
	metrics   *metrics.Metrics
}

func New(p Params) subscriptiondomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("subscription.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		addresses: p.Addresses,
		selection: p.Selection,
		pricing:   p.Pricing,
		capacity:  p.Capacity,
		clock:     p.Clock,
		metrics:   p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateMonthlyRequest) (subscriptiondomain.MonthlyBundle, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return subscriptiondomain.MonthlyBundle{}, subscriptiondomain.ErrInvalidUser
	}

	vendorIDs, err := parseVendorIDs(req.VendorIDs)
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}

	addressID, err := snowflake.ParseString(strings.TrimSpace(req.AddressID))
	if err != nil || addressID == 0 {
		return subscriptiondomain.MonthlyBundle{}, addressdomain.ErrNotFound
	}
	delivery, err := s.addresses.Resolve(ctx, userID, addressID)
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}

	startDate := req.StartDate.UTC().Truncate(24 * time.Hour)
	mealType, err := s.selection.Gate(ctx, selection.Request{
		VendorIDs: vendorIDs,
		MealType:  req.MealType,
		StartDate: startDate,
		Delivery:  delivery,
	})
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}

	quote, err := s.pricing.QuoteBundle(ctx, vendorIDs, mealType)
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}

	bundle, err := s.createBundle(ctx, userID, vendorIDs, mealType, startDate, quote, req)
	if errors.Is(err, errIdempotencyRace) {
		return s.replay(ctx, userID, strings.TrimSpace(req.IdempotencyKey))
	}
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}

	if !bundle.Replayed {
		s.metrics.RecordSubscriptionCreated(ctx, string(mealType), len(vendorIDs))
		s.log.Info("monthly subscription created",
			zap.String("subscription_id", bundle.Subscription.ID.String()),
			zap.String("user_id", userID.String()),
			zap.Int("vendor_count", len(vendorIDs)),
			zap.Float64("total_price", bundle.Subscription.TotalPrice),
		)
	}
	return bundle, nil
}

func (s *Service) createBundle(
	ctx context.Context,
	userID snowflake.ID,
	vendorIDs []snowflake.ID,
	mealType menudomain.MealType,
	startDate time.Time,
	quote pricing.Quote,
	req subscriptiondomain.CreateMonthlyRequest,
) (subscriptiondomain.MonthlyBundle, error) {
	now := s.clock.Now()
	endDate := startDate.AddDate(0, 0, subscriptiondomain.SubscriptionDays)
	parentID := s.genID.Generate()

	var bundle subscriptiondomain.MonthlyBundle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
			existing, err := s.repo.FindIdempotencyKey(ctx, tx, userID, key, now)
			if err != nil {
				return err
			}
			if existing != nil {
				replayed, err := s.loadBundle(ctx, tx, userID, existing.MonthlySubscriptionID)
				if err != nil {
					return err
				}
				replayed.Replayed = true
				bundle = replayed
				return nil
			}

			claim := &subscriptiondomain.IdempotencyKey{
				ID:                    s.genID.Generate(),
				UserID:                userID,
				Key:                   key,
				MonthlySubscriptionID: parentID,
				CreatedAt:             now,
				ExpiresAt:             now.Add(idempotencyTTL),
			}
			if err := s.repo.InsertIdempotencyKey(ctx, tx, claim); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return errIdempotencyRace
				}
				return err
			}
		}

		meals := make([]subscriptiondomain.MealSubscription, 0, len(quote.Vendors))
		mealIDs := make([]snowflake.ID, 0, len(quote.Vendors))
		for _, vendor := range quote.Vendors {
			if err := s.capacity.Reserve(ctx, tx, vendor.VendorID, startDate); err != nil {
				if errors.Is(err, capacity.ErrVendorFull) {
					s.metrics.RecordCapacityRejection(ctx, vendor.VendorID.String())
				}
				return err
			}

			meal := subscriptiondomain.MealSubscription{
				ID:                    s.genID.Generate(),
				UserID:                userID,
				VendorID:              vendor.VendorID,
				MenuID:                vendor.MenuID,
				MealType:              mealType,
				Price:                 vendor.MonthlyPrice,
				StartDate:             startDate,
				EndDate:               endDate,
				Status:                subscriptiondomain.StatusActive,
				MonthlySubscriptionID: &parentID,
				CreatedAt:             now,
				UpdatedAt:             now,
			}
			if err := s.repo.InsertMeal(ctx, tx, &meal); err != nil {
				return err
			}
			meals = append(meals, meal)
			mealIDs = append(mealIDs, meal.ID)
		}

		parent := subscriptiondomain.MonthlySubscription{
			ID:                  parentID,
			UserID:              userID,
			VendorIDs:           datatypes.NewJSONSlice(vendorIDs),
			MealType:            mealType,
			TotalPrice:          quote.Total,
			StartDate:           startDate,
			EndDate:             endDate,
			Status:              subscriptiondomain.StatusActive,
			AddressID:           mustParseID(req.AddressID),
			PaymentID:           req.PaymentID,
			MealSubscriptionIDs: datatypes.NewJSONSlice(mealIDs),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.repo.Insert(ctx, tx, &parent); err != nil {
			return err
		}

		quoteCopy := quote
		bundle = subscriptiondomain.MonthlyBundle{
			Subscription: parent,
			Meals:        meals,
			Pricing:      &quoteCopy,
		}
		return nil
	})
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}
	return bundle, nil
}

func (s *Service) replay(ctx context.Context, userID snowflake.ID, key string) (subscriptiondomain.MonthlyBundle, error) {
	record, err := s.repo.FindIdempotencyKey(ctx, s.db, userID, key, s.clock.Now())
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}
	if record == nil {
		return subscriptiondomain.MonthlyBundle{}, subscriptiondomain.ErrNotFound
	}
	bundle, err := s.loadBundle(ctx, s.db, userID, record.MonthlySubscriptionID)
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}
	bundle.Replayed = true
	return bundle, nil
}

func (s *Service) loadBundle(ctx context.Context, tx *gorm.DB, userID, id snowflake.ID) (subscriptiondomain.MonthlyBundle, error) {
	parent, err := s.repo.FindByID(ctx, tx, userID, id)
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}
	if parent == nil {
		return subscriptiondomain.MonthlyBundle{}, subscriptiondomain.ErrNotFound
	}
	meals, err := s.repo.FindMealsByParent(ctx, tx, parent.ID)
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}
	return subscriptiondomain.MonthlyBundle{Subscription: *parent, Meals: meals}, nil
}

func (s *Service) GetByID(ctx context.Context, req subscriptiondomain.GetSubscriptionRequest) (subscriptiondomain.MonthlyBundle, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return subscriptiondomain.MonthlyBundle{}, subscriptiondomain.ErrInvalidUser
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return subscriptiondomain.MonthlyBundle{}, subscriptiondomain.ErrInvalidID
	}

	return s.loadBundle(ctx, s.db, userID, id)
}

func (s *Service) List(ctx context.Context, req subscriptiondomain.ListSubscriptionRequest) (subscriptiondomain.ListSubscriptionResponse, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return subscriptiondomain.ListSubscriptionResponse{}, subscriptiondomain.ErrInvalidUser
	}

	filter := subscriptiondomain.ListFilter{}
	if status := strings.TrimSpace(req.Status); status != "" {
		filter.Status = subscriptiondomain.Status(strings.ToUpper(status))
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, userID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return subscriptiondomain.ListSubscriptionResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(subscription *subscriptiondomain.MonthlySubscription) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        subscription.ID.String(),
			CreatedAt: subscription.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	subscriptions := make([]subscriptiondomain.MonthlySubscription, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		subscriptions = append(subscriptions, *item)
	}

	resp := subscriptiondomain.ListSubscriptionResponse{Subscriptions: subscriptions}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Cancel(ctx context.Context, req subscriptiondomain.CancelSubscriptionRequest) (subscriptiondomain.MonthlyBundle, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return subscriptiondomain.MonthlyBundle{}, subscriptiondomain.ErrInvalidUser
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return subscriptiondomain.MonthlyBundle{}, subscriptiondomain.ErrInvalidID
	}

	now := s.clock.Now()
	var bundle subscriptiondomain.MonthlyBundle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parent, err := s.repo.FindByID(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if parent == nil {
			return subscriptiondomain.ErrNotFound
		}

		affected, err := s.repo.MarkCancelled(ctx, tx, userID, id, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return subscriptiondomain.ErrNotActive
		}

		if err := s.repo.MarkMealsCancelled(ctx, tx, id, now); err != nil {
			return err
		}

		for _, vendorID := range parent.VendorIDs {
			if err := s.capacity.Release(ctx, tx, vendorID, parent.StartDate); err != nil {
				if errors.Is(err, capacity.ErrNothingToFree) {
					continue
				}
				return err
			}
		}

		parent.Status = subscriptiondomain.StatusCancelled
		parent.UpdatedAt = now
		meals, err := s.repo.FindMealsByParent(ctx, tx, id)
		if err != nil {
			return err
		}
		bundle = subscriptiondomain.MonthlyBundle{Subscription: *parent, Meals: meals}
		return nil
	})
	if err != nil {
		return subscriptiondomain.MonthlyBundle{}, err
	}

	s.log.Info("monthly subscription cancelled",
		zap.String("subscription_id", id.String()),
		zap.String("user_id", userID.String()),
	)
	return bundle, nil
}

func parseVendorIDs(values []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		id, err := snowflake.ParseString(strings.TrimSpace(value))
		if err != nil || id == 0 {
			return nil, &selection.ValidationError{Violations: []selection.Violation{{
				Code:    "invalid_vendor_id",
				Message: fmt.Sprintf("vendor id %q is not valid", value),
			}}}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func mustParseID(value string) snowflake.ID {
	id, _ := snowflake.ParseString(strings.TrimSpace(value))
	return id
}
