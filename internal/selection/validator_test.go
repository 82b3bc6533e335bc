package selection

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
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	vendorrepository "github.com/smallbiznis/tiffin/internal/vendors/repository"
	"github.com/smallbiznis/tiffin/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var testDelivery = geo.Point{Lat: 25.2048, Lon: 55.2708}

type fixture struct {
	conn      *gorm.DB
	node      *snowflake.Node
	validator *Validator
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

	policy := config.NewStaticPolicyHolder(config.DefaultPolicyConfig())
	vendors := vendorrepository.Provide()
	menus := menuservice.New(menuservice.Params{
		DB:   conn,
		Log:  zap.NewNop(),
		Repo: menurepository.Provide(),
	})
	alloc := capacity.New(capacity.Params{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Policy:  policy,
		Vendors: vendors,
	})
	fakeClock := clock.NewFakeClock(time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))

	validator := New(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		Vendors:  vendors,
		Menus:    menus,
		Capacity: alloc,
		Policy:   policy,
		Clock:    fakeClock,
	})

	return &fixture{conn: conn, node: node, validator: validator, clock: fakeClock}
}

type vendorOpts struct {
	open            bool
	lat, lon        float64
	serviceRadiusKm *float64
	monthlyCapacity *int
	withMenu        bool
}

func (f *fixture) addVendor(t *testing.T, opts vendorOpts) snowflake.ID {
	t.Helper()
	now := time.Now().UTC()
	vendor := vendordomain.Vendor{
		ID:              f.node.Generate(),
		Name:            "Bay Leaf Tiffins",
		IsOpen:          opts.open,
		Latitude:        opts.lat,
		Longitude:       opts.lon,
		ServiceRadiusKm: opts.serviceRadiusKm,
		MonthlyCapacity: opts.monthlyCapacity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.conn.Create(&vendor).Error)

	if opts.withMenu {
		price := 25.0
		menu := menudomain.Menu{
			ID:       f.node.Generate(),
			VendorID: vendor.ID,
			MealType: menudomain.MealTypeLunch,
			IsActive: true,
			WeeklyPlan: datatypes.NewJSONType(menudomain.WeeklyPlan{
				Monday: menudomain.DayPlan{Items: []string{"dal tadka"}},
				Friday: menudomain.DayPlan{Items: []string{"biryani"}},
			}),
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, f.conn.Create(&menu).Error)
		require.NoError(t, f.conn.Create(&menudomain.MenuItem{
			ID:        f.node.Generate(),
			MenuID:    menu.ID,
			Name:      "dal tadka",
			Price:     &price,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error)
	}

	return vendor.ID
}

func (f *fixture) request(vendorIDs ...snowflake.ID) Request {
	return Request{
		VendorIDs: vendorIDs,
		MealType:  "lunch",
		StartDate: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		Delivery:  testDelivery,
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

func intPtr(v int) *int {
	return &v
}

func TestGateAcceptsEligibleBundle(t *testing.T) {
	f := newFixture(t)
	vendorID := f.addVendor(t, vendorOpts{open: true, lat: 25.21, lon: 55.28, withMenu: true})

	mealType, err := f.validator.Gate(context.Background(), f.request(vendorID))
	require.NoError(t, err)
	assert.Equal(t, menudomain.MealTypeLunch, mealType)
}

func TestShapeRejectsDuplicatesAndCount(t *testing.T) {
	f := newFixture(t)
	vendorID := f.addVendor(t, vendorOpts{open: true, lat: 25.21, lon: 55.28, withMenu: true})

	_, err := f.validator.Shape(f.request(vendorID, vendorID))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	codes := violationCodes(vErr.Violations)
	assert.Contains(t, codes, "duplicate_vendor")

	_, err = f.validator.Shape(f.request())
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, violationCodes(vErr.Violations), "vendor_count")
}

func TestShapeRejectsPastStartDate(t *testing.T) {
	f := newFixture(t)
	vendorID := f.addVendor(t, vendorOpts{open: true, lat: 25.21, lon: 55.28, withMenu: true})

	req := f.request(vendorID)
	req.StartDate = time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)

	_, err := f.validator.Shape(req)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, violationCodes(vErr.Violations), "past_start_date")
}

func TestShapeViolationsShortCircuitVendorChecks(t *testing.T) {
	f := newFixture(t)
	vendorID := f.addVendor(t, vendorOpts{open: true, lat: 25.21, lon: 55.28, withMenu: true})

	report, err := f.validator.Report(context.Background(), f.request(vendorID, vendorID))
	require.NoError(t, err)
	assert.False(t, report.Eligible)
	assert.Contains(t, violationCodes(report.Violations), "duplicate_vendor")
	assert.Empty(t, report.Vendors)
}

func TestReportFlagsClosedVendor(t *testing.T) {
	f := newFixture(t)
	openID := f.addVendor(t, vendorOpts{open: true, lat: 25.21, lon: 55.28, withMenu: true})
	closedID := f.addVendor(t, vendorOpts{open: false, lat: 25.21, lon: 55.28, withMenu: true})

	report, err := f.validator.Report(context.Background(), f.request(openID, closedID))
	require.NoError(t, err)
	assert.False(t, report.Eligible)
	require.Len(t, report.Vendors, 2)
	assert.True(t, report.Vendors[0].Eligible)
	assert.False(t, report.Vendors[1].Eligible)
	assert.Contains(t, report.Vendors[1].Reasons, "vendor_closed")
}

func TestReportFlagsMissingMenu(t *testing.T) {
	f := newFixture(t)
	vendorID := f.addVendor(t, vendorOpts{open: true, lat: 25.21, lon: 55.28, withMenu: false})

	report, err := f.validator.Report(context.Background(), f.request(vendorID))
	require.NoError(t, err)
	assert.False(t, report.Eligible)
	assert.Contains(t, report.Vendors[0].Reasons, "no_active_menu")
}

func TestReportFlagsUnknownVendor(t *testing.T) {
	f := newFixture(t)

	report, err := f.validator.Report(context.Background(), f.request(f.node.Generate()))
	require.NoError(t, err)
	assert.False(t, report.Eligible)
	assert.Contains(t, report.Vendors[0].Reasons, "vendor_not_found")
}

func TestReportHonoursVendorServiceRadius(t *testing.T) {
	f := newFixture(t)
	// ~8.9km north of the delivery point, but only serves a 5km radius.
	vendorID := f.addVendor(t, vendorOpts{
		open:            true,
		lat:             25.2848,
		lon:             55.2708,
		serviceRadiusKm: floatPtr(5),
		withMenu:        true,
	})

	report, err := f.validator.Report(context.Background(), f.request(vendorID))
	require.NoError(t, err)
	assert.False(t, report.Eligible)
	assert.Contains(t, report.Vendors[0].Reasons, "out_of_range")
	require.NotNil(t, report.Vendors[0].DistanceKm)
	assert.InDelta(t, 8.9, *report.Vendors[0].DistanceKm, 0.3)
}

func TestReportFlagsFullVendor(t *testing.T) {
	f := newFixture(t)
	vendorID := f.addVendor(t, vendorOpts{open: true, lat: 25.21, lon: 55.28, monthlyCapacity: intPtr(1), withMenu: true})

	req := f.request(vendorID)
	periodStart, periodEnd := capacity.MonthWindow(req.StartDate)
	require.NoError(t, f.conn.Create(&capacity.VendorCapacityPeriod{
		ID:          f.node.Generate(),
		VendorID:    vendorID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Reserved:    1,
		MaxSlots:    1,
	}).Error)

	report, err := f.validator.Report(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, report.Eligible)
	assert.Contains(t, report.Vendors[0].Reasons, "vendor_full")
	assert.Equal(t, 0, report.Vendors[0].AvailableSlots)
}

func TestReportWarnsNearCapacity(t *testing.T) {
	f := newFixture(t)
	vendorID := f.addVendor(t, vendorOpts{open: true, lat: 25.21, lon: 55.28, monthlyCapacity: intPtr(10), withMenu: true})

	req := f.request(vendorID)
	periodStart, periodEnd := capacity.MonthWindow(req.StartDate)
	require.NoError(t, f.conn.Create(&capacity.VendorCapacityPeriod{
		ID:          f.node.Generate(),
		VendorID:    vendorID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Reserved:    8,
		MaxSlots:    10,
	}).Error)

	report, err := f.validator.Report(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, report.Eligible)
	assert.Contains(t, report.Vendors[0].Warnings, "near_capacity")
	assert.Equal(t, 2, report.Vendors[0].AvailableSlots)
}

func violationCodes(violations []Violation) []string {
	codes := make([]string, 0, len(violations))
	for _, v := range violations {
		codes = append(codes, v.Code)
	}
	return codes
}
