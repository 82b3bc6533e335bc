package pricing

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/internal/config"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubMenus struct {
	menus map[snowflake.ID]*menudomain.Menu
}

func (s *stubMenus) ActiveMenu(ctx context.Context, vendorID snowflake.ID, mealType menudomain.MealType) (*menudomain.Menu, error) {
	menu, ok := s.menus[vendorID]
	if !ok {
		return nil, menudomain.ErrNoActiveMenu
	}
	return menu, nil
}

func (s *stubMenus) ListByVendor(ctx context.Context, vendorID snowflake.ID) ([]*menudomain.Menu, error) {
	return nil, nil
}

func priceOf(v float64) *float64 {
	return &v
}

func newCalculator(menus menudomain.Service) *Calculator {
	return New(Params{
		Log:    zap.NewNop(),
		Menus:  menus,
		Policy: config.NewStaticPolicyHolder(config.DefaultPolicyConfig()),
	})
}

func TestWeeklyPriceMeanOfItems(t *testing.T) {
	calc := newCalculator(&stubMenus{})

	items := []menudomain.MenuItem{
		{Name: "thali", Price: priceOf(20)},
		{Name: "biryani", Price: priceOf(25)},
		{Name: "paneer", Price: priceOf(30)},
	}

	assert.Equal(t, 175.0, calc.WeeklyPrice(items))
	assert.Equal(t, 700.0, calc.MonthlyPrice(items))
}

func TestWeeklyPriceUnpricedItemsFallBackToDefault(t *testing.T) {
	calc := newCalculator(&stubMenus{})

	items := []menudomain.MenuItem{
		{Name: "daal"},
		{Name: "korma", Price: priceOf(30)},
	}

	// (25 + 30) / 2 * 7
	assert.Equal(t, 192.5, calc.WeeklyPrice(items))
}

func TestWeeklyPriceEmptyMenuUsesDefault(t *testing.T) {
	calc := newCalculator(&stubMenus{})

	assert.Equal(t, 175.0, calc.WeeklyPrice(nil))
}

func TestQuoteBundleTwoVendors(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	vendorA := node.Generate()
	vendorB := node.Generate()
	items := []menudomain.MenuItem{
		{Name: "thali", Price: priceOf(20)},
		{Name: "biryani", Price: priceOf(25)},
		{Name: "paneer", Price: priceOf(30)},
	}
	calc := newCalculator(&stubMenus{menus: map[snowflake.ID]*menudomain.Menu{
		vendorA: {ID: node.Generate(), VendorID: vendorA, Items: items},
		vendorB: {ID: node.Generate(), VendorID: vendorB, Items: items},
	}})

	quote, err := calc.QuoteBundle(context.Background(), []snowflake.ID{vendorA, vendorB}, menudomain.MealTypeLunch)
	require.NoError(t, err)

	assert.Equal(t, 1400.0, quote.Subtotal)
	assert.Equal(t, 70.0, quote.Tax)
	assert.Equal(t, 1470.0, quote.Total)
	assert.Equal(t, 26.25, quote.AverageCostPerMeal)
	assert.Len(t, quote.Vendors, 2)
	for _, vendor := range quote.Vendors {
		assert.Equal(t, 700.0, vendor.MonthlyPrice)
	}
}

func TestQuoteBundleMissingMenuFails(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	calc := newCalculator(&stubMenus{})

	_, err = calc.QuoteBundle(context.Background(), []snowflake.ID{node.Generate()}, menudomain.MealTypeLunch)
	assert.ErrorIs(t, err, menudomain.ErrNoActiveMenu)
}
