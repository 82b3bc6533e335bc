package preview

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tiffin/internal/capacity"
	"github.com/smallbiznis/tiffin/internal/clock"
	"github.com/smallbiznis/tiffin/internal/config"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	menurepository "github.com/smallbiznis/tiffin/internal/menu/repository"
	menuservice "github.com/smallbiznis/tiffin/internal/menu/service"
	"github.com/smallbiznis/tiffin/internal/pricing"
	"github.com/smallbiznis/tiffin/internal/selection"
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	vendorrepository "github.com/smallbiznis/tiffin/internal/vendors/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	conn      *gorm.DB
	node      *snowflake.Node
	generator *Generator
	clock     *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&vendordomain.Vendor{},
		&menudomain.Menu{},
		&menudomain.MenuItem{},
		&capacity.VendorCapacityPeriod{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	policy := config.NewStaticPolicyHolder(config.DefaultPolicyConfig())
	fakeClock := clock.NewFakeClock(time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC))

	vendors := vendorrepository.Provide()
	menus := menuservice.New(menuservice.Params{DB: conn, Log: log, Repo: menurepository.Provide()})
	alloc := capacity.New(capacity.Params{DB: conn, Log: log, GenID: node, Policy: policy, Vendors: vendors})
	validator := selection.New(selection.Params{
		DB:       conn,
		Log:      log,
		Vendors:  vendors,
		Menus:    menus,
		Capacity: alloc,
		Policy:   policy,
		Clock:    fakeClock,
	})
	calculator := pricing.New(pricing.Params{Log: log, Menus: menus, Policy: policy})

	generator := New(Params{
		Log:       log,
		Selection: validator,
		Pricing:   calculator,
		Menus:     menus,
		Policy:    policy,
		Clock:     fakeClock,
	})

	return &fixture{conn: conn, node: node, generator: generator, clock: fakeClock}
}

func (f *fixture) addVendor(t *testing.T, mondayItem string) snowflake.ID {
	t.Helper()
	now := time.Now().UTC()
	vendor := vendordomain.Vendor{
		ID:        f.node.Generate(),
		Name:      "Spice Route Kitchen",
		IsOpen:    true,
		Latitude:  25.21,
		Longitude: 55.28,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.conn.Create(&vendor).Error)

	price := 25.0
	menu := menudomain.Menu{
		ID:       f.node.Generate(),
		VendorID: vendor.ID,
		MealType: menudomain.MealTypeLunch,
		IsActive: true,
		WeeklyPlan: datatypes.NewJSONType(menudomain.WeeklyPlan{
			Monday:  menudomain.DayPlan{Items: []string{mondayItem}},
			Tuesday: menudomain.DayPlan{Items: []string{"tuesday special"}},
		}),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.conn.Create(&menu).Error)
	require.NoError(t, f.conn.Create(&menudomain.MenuItem{
		ID:        f.node.Generate(),
		MenuID:    menu.ID,
		Name:      mondayItem,
		Price:     &price,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)

	return vendor.ID
}

func (f *fixture) request(vendorIDs ...snowflake.ID) Request {
	ids := make([]string, 0, len(vendorIDs))
	for _, id := range vendorIDs {
		ids = append(ids, id.String())
	}
	return Request{
		VendorIDs: ids,
		MealType:  "lunch",
		StartDate: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestGenerateQuoteWindowAndExpiry(t *testing.T) {
	f := newFixture(t)
	vendorID := f.addVendor(t, "dal tadka")

	quote, err := f.generator.Generate(context.Background(), f.request(vendorID))
	require.NoError(t, err)

	assert.NotEmpty(t, quote.QuoteID)
	assert.Equal(t, menudomain.MealTypeLunch, quote.MealType)
	assert.Equal(t, quote.StartDate.AddDate(0, 0, 28), quote.EndDate)
	assert.Equal(t, 30*time.Minute, quote.ExpiresAt.Sub(quote.GeneratedAt))
	assert.Equal(t, f.clock.Now(), quote.GeneratedAt)

	assert.Equal(t, 700.0, quote.Pricing.Subtotal)
	assert.Equal(t, 735.0, quote.Pricing.Total)
	assert.Zero(t, quote.EstimatedSavings)
	assert.Zero(t, quote.SavingsPercentage)
}

func TestGenerateRoundRobinSchedule(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, "dal tadka")
	vendorB := f.addVendor(t, "mezze platter")

	quote, err := f.generator.Generate(context.Background(), f.request(vendorA, vendorB))
	require.NoError(t, err)

	require.Len(t, quote.Schedule, 7)
	weekdays := menudomain.Weekdays()
	for i, day := range quote.Schedule {
		assert.Equal(t, weekdays[i], day.Weekday)
		if i%2 == 0 {
			assert.Equal(t, vendorA, day.VendorID)
		} else {
			assert.Equal(t, vendorB, day.VendorID)
		}
	}

	// monday comes from vendor A's plan, tuesday from vendor B's
	assert.Equal(t, []string{"dal tadka"}, quote.Schedule[0].Items)
	assert.Equal(t, []string{"tuesday special"}, quote.Schedule[1].Items)
}

func TestGenerateRejectsOversizedBundle(t *testing.T) {
	f := newFixture(t)
	ids := make([]snowflake.ID, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, f.addVendor(t, "dal tadka"))
	}

	_, err := f.generator.Generate(context.Background(), f.request(ids...))
	var vErr *selection.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "vendor_count", vErr.Violations[0].Code)
}

func TestGenerateRejectsMalformedVendorID(t *testing.T) {
	f := newFixture(t)

	req := f.request()
	req.VendorIDs = []string{"abc"}

	_, err := f.generator.Generate(context.Background(), req)
	var vErr *selection.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "invalid_vendor_id", vErr.Violations[0].Code)
}
