package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/internal/address/domain"
	"github.com/smallbiznis/tiffin/pkg/geo"
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
		log:  p.Log.Named("address.service"),
		repo: p.Repo,
	}
}

func (s *Service) Resolve(ctx context.Context, userID, addressID snowflake.ID) (geo.Point, error) {
	address, err := s.repo.FindByID(ctx, s.db, userID, addressID)
	if err != nil {
		return geo.Point{}, err
	}
	if address == nil {
		return geo.Point{}, domain.ErrNotFound
	}
	return geo.Point{Lat: address.Latitude, Lon: address.Longitude}, nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]*domain.Address, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}
