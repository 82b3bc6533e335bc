// Package pricing computes weekly and monthly vendor prices plus the
// tax-inclusive cost of a vendor bundle.
package pricing

import (
	"context"
	"math"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/internal/config"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// VendorMonthly is one vendor's share of a bundle.
type VendorMonthly struct {
	VendorID     snowflake.ID `json:"vendor_id"`
	MenuID       snowflake.ID `json:"menu_id"`
	WeeklyPrice  float64      `json:"weekly_price"`
	MonthlyPrice float64      `json:"monthly_price"`
}

// Quote is the aggregate cost breakdown for a bundle.
type Quote struct {
	Vendors            []VendorMonthly `json:"vendors"`
	Subtotal           float64         `json:"subtotal"`
	Tax                float64         `json:"tax"`
	ServiceFee         float64         `json:"service_fee"`
	DeliveryFee        float64         `json:"delivery_fee"`
	Total              float64         `json:"total"`
	AverageCostPerMeal float64         `json:"average_cost_per_meal"`
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Menus  menudomain.Service
	Policy *config.PolicyHolder
}

type Calculator struct {
	log    *zap.Logger
	menus  menudomain.Service
	policy *config.PolicyHolder
}

func New(p Params) *Calculator {
	return &Calculator{
		log:    p.Log.Named("pricing.calculator"),
		menus:  p.Menus,
		policy: p.Policy,
	}
}

// WeeklyPrice is the mean item price times seven daily meals. Items without
// a price fall back to the configured default.
func (c *Calculator) WeeklyPrice(items []menudomain.MenuItem) float64 {
	defaultPrice := c.policy.Get().DefaultItemPrice
	if len(items) == 0 {
		return round2(defaultPrice * 7)
	}

	var sum float64
	for _, item := range items {
		if item.Price != nil {
			sum += *item.Price
		} else {
			sum += defaultPrice
		}
	}
	mean := sum / float64(len(items))
	return round2(mean * 7)
}

// MonthlyPrice covers the fixed four-week subscription window.
func (c *Calculator) MonthlyPrice(items []menudomain.MenuItem) float64 {
	return round2(c.WeeklyPrice(items) * 4)
}

// PriceVendor resolves the vendor's active menu and prices its monthly share.
func (c *Calculator) PriceVendor(ctx context.Context, vendorID snowflake.ID, mealType menudomain.MealType) (VendorMonthly, error) {
	menu, err := c.menus.ActiveMenu(ctx, vendorID, mealType)
	if err != nil {
		return VendorMonthly{}, err
	}

	weekly := c.WeeklyPrice(menu.Items)
	return VendorMonthly{
		VendorID:     vendorID,
		MenuID:       menu.ID,
		WeeklyPrice:  weekly,
		MonthlyPrice: round2(weekly * 4),
	}, nil
}

// QuoteBundle prices every vendor and aggregates the tax-inclusive total.
func (c *Calculator) QuoteBundle(ctx context.Context, vendorIDs []snowflake.ID, mealType menudomain.MealType) (Quote, error) {
	vendors := make([]VendorMonthly, 0, len(vendorIDs))
	for _, vendorID := range vendorIDs {
		priced, err := c.PriceVendor(ctx, vendorID, mealType)
		if err != nil {
			return Quote{}, err
		}
		vendors = append(vendors, priced)
	}
	return c.Aggregate(vendors), nil
}

// Aggregate folds per-vendor monthly shares into a quote. Service and
// delivery fees are waived on monthly bundles.
func (c *Calculator) Aggregate(vendors []VendorMonthly) Quote {
	var subtotal float64
	for _, vendor := range vendors {
		subtotal += vendor.MonthlyPrice
	}
	subtotal = round2(subtotal)
	tax := round2(subtotal * c.policy.Get().TaxRate)
	total := round2(subtotal + tax)

	quote := Quote{
		Vendors:  vendors,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    total,
	}
	if len(vendors) > 0 {
		quote.AverageCostPerMeal = round2(total / float64(28*len(vendors)))
	}
	return quote
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var Module = fx.Module("pricing.calculator",
	fx.Provide(New),
)
