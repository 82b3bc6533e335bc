package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/internal/capacity"
	"github.com/smallbiznis/tiffin/internal/clock"
	"github.com/smallbiznis/tiffin/internal/config"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	"github.com/smallbiznis/tiffin/internal/vendors/domain"
	"github.com/smallbiznis/tiffin/pkg/db/pagination"
	"github.com/smallbiznis/tiffin/pkg/geo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	Menus    menudomain.Service
	Capacity capacity.Allocator
	Policy   *config.PolicyHolder
	Clock    clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	menus    menudomain.Service
	capacity capacity.Allocator
	policy   *config.PolicyHolder
	clock    clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("vendor.service"),
		repo:     p.Repo,
		menus:    p.Menus,
		capacity: p.Capacity,
		policy:   p.Policy,
		clock:    p.Clock,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListVendorRequest) (domain.ListVendorResponse, error) {
	var mealType menudomain.MealType
	if value := strings.TrimSpace(req.MealType); value != "" {
		parsed, err := menudomain.ParseMealType(value)
		if err != nil {
			return domain.ListVendorResponse{}, err
		}
		mealType = parsed
	}

	filter := domain.ListVendorFilter{
		Cuisine:  strings.TrimSpace(req.Cuisine),
		OpenOnly: req.OpenOnly,
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListVendorResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(vendor *domain.Vendor) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        vendor.ID.String(),
			CreatedAt: vendor.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	var origin *geo.Point
	if req.Latitude != nil && req.Longitude != nil {
		origin = &geo.Point{Lat: *req.Latitude, Lon: *req.Longitude}
	}
	radiusKm := s.policy.Get().DeliveryRadiusKm
	if req.RadiusKm != nil && *req.RadiusKm > 0 && *req.RadiusKm < radiusKm {
		radiusKm = *req.RadiusKm
	}
	now := s.clock.Now()

	vendors := make([]domain.VendorAvailability, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		if mealType != "" {
			if _, err := s.menus.ActiveMenu(ctx, item.ID, mealType); err != nil {
				if errors.Is(err, menudomain.ErrNoActiveMenu) {
					continue
				}
				return domain.ListVendorResponse{}, err
			}
		}

		entry := domain.VendorAvailability{Vendor: *item}
		if origin != nil {
			distance := geo.DistanceKm(*origin, geo.Point{Lat: item.Latitude, Lon: item.Longitude})
			if distance > radiusKm {
				continue
			}
			if item.ServiceRadiusKm != nil && distance > *item.ServiceRadiusKm {
				continue
			}
			entry.DistanceKm = &distance
		}

		available, err := s.capacity.AvailableSlots(ctx, item.ID, now)
		if err != nil {
			return domain.ListVendorResponse{}, err
		}
		entry.AvailableSlots = available

		vendors = append(vendors, entry)
	}

	resp := domain.ListVendorResponse{Vendors: vendors}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetVendorRequest) (domain.VendorAvailability, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.VendorAvailability{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.VendorAvailability{}, err
	}
	if item == nil {
		return domain.VendorAvailability{}, domain.ErrNotFound
	}

	available, err := s.capacity.AvailableSlots(ctx, item.ID, s.clock.Now())
	if err != nil {
		return domain.VendorAvailability{}, err
	}

	return domain.VendorAvailability{Vendor: *item, AvailableSlots: available}, nil
}
