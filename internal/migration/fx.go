package migration

import (
	addressdomain "github.com/smallbiznis/tiffin/internal/address/domain"
	"github.com/smallbiznis/tiffin/internal/capacity"
	"github.com/smallbiznis/tiffin/internal/config"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	"github.com/smallbiznis/tiffin/internal/seed"
	subscriptiondomain "github.com/smallbiznis/tiffin/internal/subscription/domain"
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// mysql/sqlite dev environments rely on the model schema
			if err := conn.AutoMigrate(
				&vendordomain.Vendor{},
				&menudomain.Menu{},
				&menudomain.MenuItem{},
				&addressdomain.Address{},
				&capacity.VendorCapacityPeriod{},
				&subscriptiondomain.MonthlySubscription{},
				&subscriptiondomain.MealSubscription{},
				&subscriptiondomain.IdempotencyKey{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedDemoData {
			return seed.EnsureDemoData(conn)
		}
		return nil
	}),
)
