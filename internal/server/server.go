package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tiffin/internal/address"
	addressdomain "github.com/smallbiznis/tiffin/internal/address/domain"
	"github.com/smallbiznis/tiffin/internal/capacity"
	"github.com/smallbiznis/tiffin/internal/config"
	"github.com/smallbiznis/tiffin/internal/menu"
	"github.com/smallbiznis/tiffin/internal/observability"
	obsmiddleware "github.com/smallbiznis/tiffin/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tiffin/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tiffin/internal/observability/tracing"
	"github.com/smallbiznis/tiffin/internal/preview"
	"github.com/smallbiznis/tiffin/internal/pricing"
	"github.com/smallbiznis/tiffin/internal/ratelimit"
	"github.com/smallbiznis/tiffin/internal/selection"
	"github.com/smallbiznis/tiffin/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/tiffin/internal/subscription/domain"
	"github.com/smallbiznis/tiffin/internal/vendors"
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	vendors.Module,
	menu.Module,
	address.Module,
	capacity.Module,
	pricing.Module,
	selection.Module,
	subscription.Module,
	preview.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	vendorSvc       vendordomain.Service
	addressSvc      addressdomain.Service
	subscriptionSvc subscriptiondomain.Service
	selectionSvc    *selection.Validator
	previewGen      *preview.Generator
	quoteLimiter    *ratelimit.QuoteLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	VendorSvc       vendordomain.Service
	AddressSvc      addressdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	SelectionSvc    *selection.Validator
	PreviewGen      *preview.Generator
	QuoteLimiter    *ratelimit.QuoteLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		vendorSvc:       p.VendorSvc,
		addressSvc:      p.AddressSvc,
		subscriptionSvc: p.SubscriptionSvc,
		selectionSvc:    p.SelectionSvc,
		previewGen:      p.PreviewGen,
		quoteLimiter:    p.QuoteLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/vendors", s.ListVendors)
	api.GET("/vendors/:id", s.GetVendorByID)

	api.GET("/addresses", s.UserRequired(), s.ListAddresses)

	api.POST("/subscriptions/monthly/preview", s.UserRequired(), s.PreviewMonthlySubscription)
	api.POST("/subscriptions/monthly/validate", s.UserRequired(), s.ValidateMonthlySelection)
	api.POST("/subscriptions/monthly", s.UserRequired(), s.CreateMonthlySubscription)
	api.GET("/subscriptions", s.UserRequired(), s.ListSubscriptions)
	api.GET("/subscriptions/:id", s.UserRequired(), s.GetSubscriptionByID)
	api.POST("/subscriptions/:id/cancel", s.UserRequired(), s.CancelSubscription)
}
