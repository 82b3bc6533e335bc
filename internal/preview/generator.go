// Package preview produces advisory cost quotes for a vendor bundle
// without reserving capacity.
package preview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tiffin/internal/clock"
	"github.com/smallbiznis/tiffin/internal/config"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	"github.com/smallbiznis/tiffin/internal/observability/metrics"
	"github.com/smallbiznis/tiffin/internal/pricing"
	"github.com/smallbiznis/tiffin/internal/selection"
	subscriptiondomain "github.com/smallbiznis/tiffin/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Request struct {
	VendorIDs []string
	MealType  string
	StartDate time.Time
}

// DayAssignment says which vendor covers a weekday and what that vendor's
// plan serves that day.
type DayAssignment struct {
	Weekday  string       `json:"weekday"`
	VendorID snowflake.ID `json:"vendor_id"`
	Items    []string     `json:"items,omitempty"`
}

// Quote is an advisory preview. EstimatedSavings stays zero until the
// a-la-carte comparison source lands.
type Quote struct {
	QuoteID           string              `json:"quote_id"`
	MealType          menudomain.MealType `json:"meal_type"`
	StartDate         time.Time           `json:"start_date"`
	EndDate           time.Time           `json:"end_date"`
	Schedule          []DayAssignment     `json:"schedule"`
	Pricing           pricing.Quote       `json:"pricing"`
	EstimatedSavings  float64             `json:"estimated_savings"`
	SavingsPercentage float64             `json:"savings_percentage"`
	GeneratedAt       time.Time           `json:"generated_at"`
	ExpiresAt         time.Time           `json:"expires_at"`
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Selection *selection.Validator
	Pricing   *pricing.Calculator
	Menus     menudomain.Service
	Policy    *config.PolicyHolder
	Clock     clock.Clock
	Metrics   *metrics.Metrics `optional:"true"`
}

type Generator struct {
	log       *zap.Logger
	selection *selection.Validator
	pricing   *pricing.Calculator
	menus     menudomain.Service
	policy    *config.PolicyHolder
	clock     clock.Clock
	metrics   *metrics.Metrics
}

func New(p Params) *Generator {
	return &Generator{
		log:       p.Log.Named("preview.generator"),
		selection: p.Selection,
		pricing:   p.Pricing,
		menus:     p.Menus,
		policy:    p.Policy,
		clock:     p.Clock,
		metrics:   p.Metrics,
	}
}

// Generate validates the request shape, prices the bundle and lays out the
// weekly schedule. Nothing is reserved.
func (g *Generator) Generate(ctx context.Context, req Request) (Quote, error) {
	vendorIDs, err := parseVendorIDs(req.VendorIDs)
	if err != nil {
		return Quote{}, err
	}

	startDate := req.StartDate.UTC().Truncate(24 * time.Hour)
	mealType, err := g.selection.Shape(selection.Request{
		VendorIDs: vendorIDs,
		MealType:  req.MealType,
		StartDate: startDate,
	})
	if err != nil {
		return Quote{}, err
	}

	aggregate, err := g.pricing.QuoteBundle(ctx, vendorIDs, mealType)
	if err != nil {
		return Quote{}, err
	}

	schedule, err := g.buildSchedule(ctx, vendorIDs, mealType)
	if err != nil {
		return Quote{}, err
	}

	now := g.clock.Now()
	ttl := time.Duration(g.policy.Get().PreviewTTLMinutes) * time.Minute
	quote := Quote{
		QuoteID:     uuid.NewString(),
		MealType:    mealType,
		StartDate:   startDate,
		EndDate:     startDate.AddDate(0, 0, subscriptiondomain.SubscriptionDays),
		Schedule:    schedule,
		Pricing:     aggregate,
		GeneratedAt: now,
		ExpiresAt:   now.Add(ttl),
	}

	g.metrics.RecordPreviewQuote(ctx, string(mealType))
	return quote, nil
}

// buildSchedule round-robins the seven weekdays across the bundle's vendors
// in request order.
func (g *Generator) buildSchedule(ctx context.Context, vendorIDs []snowflake.ID, mealType menudomain.MealType) ([]DayAssignment, error) {
	plans := make(map[snowflake.ID]menudomain.WeeklyPlan, len(vendorIDs))
	for _, vendorID := range vendorIDs {
		menu, err := g.menus.ActiveMenu(ctx, vendorID, mealType)
		if err != nil {
			return nil, err
		}
		plans[vendorID] = menu.WeeklyPlan.Data()
	}

	weekdays := menudomain.Weekdays()
	schedule := make([]DayAssignment, 0, len(weekdays))
	for i, weekday := range weekdays {
		vendorID := vendorIDs[i%len(vendorIDs)]
		days := plans[vendorID].Days()
		schedule = append(schedule, DayAssignment{
			Weekday:  weekday,
			VendorID: vendorID,
			Items:    days[i].Items,
		})
	}
	return schedule, nil
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

var Module = fx.Module("preview.generator",
	fx.Provide(New),
)
