package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/internal/menu/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("menu.service"),
		repo: p.Repo,
	}
}

func (s *Service) ActiveMenu(ctx context.Context, vendorID snowflake.ID, mealType domain.MealType) (*domain.Menu, error) {
	menu, err := s.repo.FindActive(ctx, s.db, vendorID, mealType)
	if err != nil {
		return nil, err
	}
	if menu == nil {
		return nil, domain.ErrNoActiveMenu
	}

	items, err := s.repo.FindItems(ctx, s.db, menu.ID)
	if err != nil {
		return nil, err
	}
	menu.Items = items

	if len(menu.Items) == 0 && menu.WeeklyPlan.Data().IsEmpty() {
		return nil, domain.ErrNoActiveMenu
	}

	return menu, nil
}

func (s *Service) ListByVendor(ctx context.Context, vendorID snowflake.ID) ([]*domain.Menu, error) {
	menus, err := s.repo.ListByVendor(ctx, s.db, vendorID)
	if err != nil {
		return nil, err
	}
	for _, menu := range menus {
		items, err := s.repo.FindItems(ctx, s.db, menu.ID)
		if err != nil {
			return nil, err
		}
		menu.Items = items
	}
	return menus, nil
}
