// Package selection decides whether a vendor bundle is eligible for a
// monthly subscription before any money or capacity is committed.
package selection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/internal/capacity"
	"github.com/smallbiznis/tiffin/internal/clock"
	"github.com/smallbiznis/tiffin/internal/config"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	"github.com/smallbiznis/tiffin/pkg/geo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MinVendors = 1
	MaxVendors = 4
)

type Request struct {
	VendorIDs []snowflake.ID
	MealType  string
	StartDate time.Time
	Delivery  geo.Point
}

type Violation struct {
	Code     string       `json:"code"`
	VendorID snowflake.ID `json:"vendor_id,omitempty"`
	Message  string       `json:"message"`
}

// ValidationError aggregates every violation found in gate mode so the
// caller sees the full list in one response.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, v.Code)
	}
	return "validation failed: " + strings.Join(codes, ", ")
}

type VendorReport struct {
	VendorID       snowflake.ID `json:"vendor_id"`
	Name           string       `json:"name,omitempty"`
	Eligible       bool         `json:"eligible"`
	Reasons        []string     `json:"reasons,omitempty"`
	Warnings       []string     `json:"warnings,omitempty"`
	DistanceKm     *float64     `json:"distance_km,omitempty"`
	AvailableSlots int          `json:"available_slots"`
}

type Report struct {
	Eligible   bool                `json:"eligible"`
	MealType   menudomain.MealType `json:"meal_type,omitempty"`
	Violations []Violation         `json:"violations,omitempty"`
	Vendors    []VendorReport      `json:"vendors,omitempty"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Vendors  vendordomain.Repository
	Menus    menudomain.Service
	Capacity capacity.Allocator
	Policy   *config.PolicyHolder
	Clock    clock.Clock
}

type Validator struct {
	db       *gorm.DB
	log      *zap.Logger
	vendors  vendordomain.Repository
	menus    menudomain.Service
	capacity capacity.Allocator
	policy   *config.PolicyHolder
	clock    clock.Clock
}

func New(p Params) *Validator {
	return &Validator{
		db:       p.DB,
		log:      p.Log.Named("selection.validator"),
		vendors:  p.Vendors,
		menus:    p.Menus,
		capacity: p.Capacity,
		policy:   p.Policy,
		clock:    p.Clock,
	}
}

// Shape runs only the request-shape checks: vendor count, duplicates, meal
// type and start date. Used by preview, which never touches capacity.
func (v *Validator) Shape(req Request) (menudomain.MealType, error) {
	mealType, shape := v.checkShape(req)
	if len(shape) > 0 {
		return mealType, &ValidationError{Violations: shape}
	}
	return mealType, nil
}

// Report never errors on business violations; it returns the full
// per-vendor eligibility picture for the validate endpoint.
func (v *Validator) Report(ctx context.Context, req Request) (Report, error) {
	mealType, shape := v.checkShape(req)
	if len(shape) > 0 {
		// shape problems make per-vendor checks meaningless
		return Report{Eligible: false, MealType: mealType, Violations: shape}, nil
	}

	report := Report{Eligible: true, MealType: mealType}
	for _, vendorID := range req.VendorIDs {
		vendorReport, err := v.checkVendor(ctx, vendorID, mealType, req)
		if err != nil {
			return Report{}, err
		}
		if !vendorReport.Eligible {
			report.Eligible = false
		}
		report.Vendors = append(report.Vendors, vendorReport)
	}
	return report, nil
}

// Gate is the strict mode used by subscription creation: any violation,
// shape or per-vendor, comes back as one aggregated ValidationError.
func (v *Validator) Gate(ctx context.Context, req Request) (menudomain.MealType, error) {
	mealType, shape := v.checkShape(req)
	if len(shape) > 0 {
		return mealType, &ValidationError{Violations: shape}
	}

	var violations []Violation
	for _, vendorID := range req.VendorIDs {
		vendorReport, err := v.checkVendor(ctx, vendorID, mealType, req)
		if err != nil {
			return mealType, err
		}
		for _, reason := range vendorReport.Reasons {
			violations = append(violations, Violation{
				Code:     reason,
				VendorID: vendorID,
				Message:  reasonMessage(reason, vendorID),
			})
		}
	}
	if len(violations) > 0 {
		return mealType, &ValidationError{Violations: violations}
	}
	return mealType, nil
}

func (v *Validator) checkShape(req Request) (menudomain.MealType, []Violation) {
	var violations []Violation

	if count := len(req.VendorIDs); count < MinVendors || count > MaxVendors {
		violations = append(violations, Violation{
			Code:    "vendor_count",
			Message: fmt.Sprintf("vendor count must be between %d and %d, got %d", MinVendors, MaxVendors, count),
		})
	}

	seen := make(map[snowflake.ID]struct{}, len(req.VendorIDs))
	for _, vendorID := range req.VendorIDs {
		if _, dup := seen[vendorID]; dup {
			violations = append(violations, Violation{
				Code:     "duplicate_vendor",
				VendorID: vendorID,
				Message:  fmt.Sprintf("vendor %s appears more than once", vendorID),
			})
		}
		seen[vendorID] = struct{}{}
	}

	mealType, err := menudomain.ParseMealType(req.MealType)
	if err != nil {
		violations = append(violations, Violation{
			Code:    "invalid_meal_type",
			Message: fmt.Sprintf("unknown meal type %q", req.MealType),
		})
	}

	today := v.clock.Now().Truncate(24 * time.Hour)
	if req.StartDate.Before(today) {
		violations = append(violations, Violation{
			Code:    "past_start_date",
			Message: "start date must not be in the past",
		})
	}

	return mealType, violations
}

func (v *Validator) checkVendor(ctx context.Context, vendorID snowflake.ID, mealType menudomain.MealType, req Request) (VendorReport, error) {
	report := VendorReport{VendorID: vendorID, Eligible: true}

	vendor, err := v.vendors.FindByID(ctx, v.db, vendorID)
	if err != nil {
		return VendorReport{}, err
	}
	if vendor == nil {
		report.Eligible = false
		report.Reasons = append(report.Reasons, "vendor_not_found")
		return report, nil
	}
	report.Name = vendor.Name

	if !vendor.IsOpen {
		report.Eligible = false
		report.Reasons = append(report.Reasons, "vendor_closed")
	}

	if _, err := v.menus.ActiveMenu(ctx, vendorID, mealType); err != nil {
		if err == menudomain.ErrNoActiveMenu {
			report.Eligible = false
			report.Reasons = append(report.Reasons, "no_active_menu")
		} else {
			return VendorReport{}, err
		}
	}

	distance := geo.DistanceKm(req.Delivery, geo.Point{Lat: vendor.Latitude, Lon: vendor.Longitude})
	report.DistanceKm = &distance
	radius := v.policy.Get().DeliveryRadiusKm
	if vendor.ServiceRadiusKm != nil && *vendor.ServiceRadiusKm < radius {
		radius = *vendor.ServiceRadiusKm
	}
	if distance > radius {
		report.Eligible = false
		report.Reasons = append(report.Reasons, "out_of_range")
	}

	available, err := v.capacity.AvailableSlots(ctx, vendorID, req.StartDate)
	if err != nil {
		return VendorReport{}, err
	}
	report.AvailableSlots = available
	if available <= 0 {
		report.Eligible = false
		report.Reasons = append(report.Reasons, "vendor_full")
	} else {
		maxSlots, err := v.capacity.MaxSlots(ctx, vendorID)
		if err != nil {
			return VendorReport{}, err
		}
		if available*5 <= maxSlots {
			report.Warnings = append(report.Warnings, "near_capacity")
		}
	}

	return report, nil
}

func reasonMessage(code string, vendorID snowflake.ID) string {
	switch code {
	case "vendor_not_found":
		return fmt.Sprintf("vendor %s does not exist", vendorID)
	case "vendor_closed":
		return fmt.Sprintf("vendor %s is not accepting subscriptions", vendorID)
	case "no_active_menu":
		return fmt.Sprintf("vendor %s has no active menu for the requested meal", vendorID)
	case "out_of_range":
		return fmt.Sprintf("vendor %s cannot deliver to the selected address", vendorID)
	case "vendor_full":
		return fmt.Sprintf("vendor %s has no remaining slots this month", vendorID)
	default:
		return code
	}
}

var Module = fx.Module("selection.validator",
	fx.Provide(New),
)
