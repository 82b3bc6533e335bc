package capacity

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/internal/config"
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	"github.com/smallbiznis/tiffin/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrVendorFull    = errors.New("vendor_full")
	ErrUnknownVendor = errors.New("vendor_not_found")
	ErrNothingToFree = errors.New("nothing_to_release")
)

// Allocator manages monthly vendor slots.
type Allocator interface {
	MaxSlots(ctx context.Context, vendorID snowflake.ID) (int, error)
	AvailableSlots(ctx context.Context, vendorID snowflake.ID, at time.Time) (int, error)
	HasCapacity(ctx context.Context, vendorID snowflake.ID, at time.Time) (bool, error)

	// Reserve takes one slot inside the caller's transaction. The update is a
	// single conditional increment, so the losing side of a race gets
	// ErrVendorFull instead of overbooking.
	Reserve(ctx context.Context, tx *gorm.DB, vendorID snowflake.ID, at time.Time) error
	Release(ctx context.Context, tx *gorm.DB, vendorID snowflake.ID, at time.Time) error
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Policy  *config.PolicyHolder
	Vendors vendordomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	policy  *config.PolicyHolder
	vendors vendordomain.Repository
}

func New(p Params) Allocator {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("capacity.service"),
		genID:   p.GenID,
		policy:  p.Policy,
		vendors: p.Vendors,
	}
}

func (s *Service) MaxSlots(ctx context.Context, vendorID snowflake.ID) (int, error) {
	vendor, err := s.vendors.FindByID(ctx, s.db, vendorID)
	if err != nil {
		return 0, err
	}
	if vendor == nil {
		return 0, ErrUnknownVendor
	}
	if vendor.MonthlyCapacity != nil && *vendor.MonthlyCapacity > 0 {
		return *vendor.MonthlyCapacity, nil
	}
	return s.policy.Get().DefaultMonthlyCapacity, nil
}

func (s *Service) AvailableSlots(ctx context.Context, vendorID snowflake.ID, at time.Time) (int, error) {
	maxSlots, err := s.MaxSlots(ctx, vendorID)
	if err != nil {
		return 0, err
	}

	periodStart, _ := MonthWindow(at)
	var reserved int
	err = s.db.WithContext(ctx).Raw(
		`SELECT reserved FROM vendor_capacity_periods WHERE vendor_id = ? AND period_start = ?`,
		vendorID,
		periodStart,
	).Scan(&reserved).Error
	if err != nil {
		return 0, err
	}

	available := maxSlots - reserved
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (s *Service) HasCapacity(ctx context.Context, vendorID snowflake.ID, at time.Time) (bool, error) {
	available, err := s.AvailableSlots(ctx, vendorID, at)
	if err != nil {
		return false, err
	}
	return available > 0, nil
}

func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, vendorID snowflake.ID, at time.Time) error {
	maxSlots, err := s.MaxSlots(ctx, vendorID)
	if err != nil {
		return err
	}

	periodStart, periodEnd := MonthWindow(at)
	if err := s.ensurePeriod(ctx, tx, vendorID, periodStart, periodEnd, maxSlots); err != nil {
		return err
	}

	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE vendor_capacity_periods
		 SET reserved = reserved + 1, updated_at = ?
		 WHERE vendor_id = ? AND period_start = ? AND reserved < max_slots`,
		now,
		vendorID,
		periodStart,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVendorFull
	}
	return nil
}

func (s *Service) Release(ctx context.Context, tx *gorm.DB, vendorID snowflake.ID, at time.Time) error {
	periodStart, _ := MonthWindow(at)
	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE vendor_capacity_periods
		 SET reserved = reserved - 1, updated_at = ?
		 WHERE vendor_id = ? AND period_start = ? AND reserved > 0`,
		now,
		vendorID,
		periodStart,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Warn("release without reservation",
			zap.String("vendor_id", vendorID.String()),
			zap.Time("period_start", periodStart),
		)
		return ErrNothingToFree
	}
	return nil
}

func (s *Service) ensurePeriod(ctx context.Context, tx *gorm.DB, vendorID snowflake.ID, periodStart, periodEnd time.Time, maxSlots int) error {
	now := time.Now().UTC()
	err := tx.WithContext(ctx).Exec(
		`INSERT INTO vendor_capacity_periods (id, vendor_id, period_start, period_end, reserved, max_slots, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		s.genID.Generate(),
		vendorID,
		periodStart,
		periodEnd,
		maxSlots,
		now,
		now,
	).Error
	if err != nil && !db.IsDuplicateKeyErr(err) {
		return err
	}
	return nil
}
