package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	addressdomain "github.com/smallbiznis/tiffin/internal/address/domain"
	addressrepository "github.com/smallbiznis/tiffin/internal/address/repository"
	addressservice "github.com/smallbiznis/tiffin/internal/address/service"
	"github.com/smallbiznis/tiffin/internal/capacity"
	"github.com/smallbiznis/tiffin/internal/clock"
	"github.com/smallbiznis/tiffin/internal/config"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	menurepository "github.com/smallbiznis/tiffin/internal/menu/repository"
	menuservice "github.com/smallbiznis/tiffin/internal/menu/service"
	"github.com/smallbiznis/tiffin/internal/pricing"
	"github.com/smallbiznis/tiffin/internal/selection"
	subscriptiondomain "github.com/smallbiznis/tiffin/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/tiffin/internal/subscription/repository"
	"github.com/smallbiznis/tiffin/internal/usercontext"
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	vendorrepository "github.com/smallbiznis/tiffin/internal/vendors/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	conn  *gorm.DB
	node  *snowflake.Node
	svc   subscriptiondomain.Service
	clock *clock.FakeClock

	userID    snowflake.ID
	addressID snowflake.ID
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
		&addressdomain.Address{},
		&capacity.VendorCapacityPeriod{},
		&subscriptiondomain.MonthlySubscription{},
		&subscriptiondomain.MealSubscription{},
		&subscriptiondomain.IdempotencyKey{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	policy := config.NewStaticPolicyHolder(config.DefaultPolicyConfig())
	fakeClock := clock.NewFakeClock(time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))

	vendors := vendorrepository.Provide()
	menus := menuservice.New(menuservice.Params{DB: conn, Log: log, Repo: menurepository.Provide()})
	alloc := capacity.New(capacity.Params{DB: conn, Log: log, GenID: node, Policy: policy, Vendors: vendors})
	addresses := addressservice.New(addressservice.Params{DB: conn, Log: log, Repo: addressrepository.Provide()})
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

	svc := New(Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      subscriptionrepository.Provide(),
		Addresses: addresses,
		Selection: validator,
		Pricing:   calculator,
		Capacity:  alloc,
		Clock:     fakeClock,
	})

	f := &fixture{conn: conn, node: node, svc: svc, clock: fakeClock, userID: node.Generate()}

	address := addressdomain.Address{
		ID:        node.Generate(),
		UserID:    f.userID,
		Label:     "home",
		Latitude:  25.2048,
		Longitude: 55.2708,
	}
	require.NoError(t, conn.Create(&address).Error)
	f.addressID = address.ID

	return f
}

func (f *fixture) ctx() context.Context {
	return usercontext.WithUserID(context.Background(), int64(f.userID))
}

func (f *fixture) ctxFor(userID snowflake.ID) context.Context {
	return usercontext.WithUserID(context.Background(), int64(userID))
}

func (f *fixture) addVendor(t *testing.T, monthlyCapacity *int) snowflake.ID {
	t.Helper()
	now := time.Now().UTC()
	vendor := vendordomain.Vendor{
		ID:              f.node.Generate(),
		Name:            "Zaatar House",
		IsOpen:          true,
		Latitude:        25.21,
		Longitude:       55.28,
		MonthlyCapacity: monthlyCapacity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.conn.Create(&vendor).Error)

	menu := menudomain.Menu{
		ID:       f.node.Generate(),
		VendorID: vendor.ID,
		MealType: menudomain.MealTypeLunch,
		IsActive: true,
		WeeklyPlan: datatypes.NewJSONType(menudomain.WeeklyPlan{
			Monday: menudomain.DayPlan{Items: []string{"mezze platter"}},
		}),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.conn.Create(&menu).Error)

	for _, price := range []float64{20, 25, 30} {
		p := price
		require.NoError(t, f.conn.Create(&menudomain.MenuItem{
			ID:        f.node.Generate(),
			MenuID:    menu.ID,
			Name:      "item",
			Price:     &p,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error)
	}

	return vendor.ID
}

func (f *fixture) createRequest(key string, vendorIDs ...snowflake.ID) subscriptiondomain.CreateMonthlyRequest {
	ids := make([]string, 0, len(vendorIDs))
	for _, id := range vendorIDs {
		ids = append(ids, id.String())
	}
	return subscriptiondomain.CreateMonthlyRequest{
		VendorIDs:      ids,
		MealType:       "lunch",
		StartDate:      time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		AddressID:      f.addressID.String(),
		IdempotencyKey: key,
	}
}

func (f *fixture) reservedSlots(t *testing.T, vendorID snowflake.ID) int {
	t.Helper()
	var reserved int
	require.NoError(t, f.conn.Raw(
		`SELECT COALESCE(SUM(reserved), 0) FROM vendor_capacity_periods WHERE vendor_id = ?`,
		vendorID,
	).Scan(&reserved).Error)
	return reserved
}

func TestCreateMonthlyBundle(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)
	vendorB := f.addVendor(t, nil)

	bundle, err := f.svc.Create(f.ctx(), f.createRequest("key-1", vendorA, vendorB))
	require.NoError(t, err)

	assert.False(t, bundle.Replayed)
	assert.Equal(t, subscriptiondomain.StatusActive, bundle.Subscription.Status)
	assert.Equal(t, 1470.0, bundle.Subscription.TotalPrice)
	assert.Equal(t,
		time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		bundle.Subscription.EndDate,
	)

	require.Len(t, bundle.Meals, 2)
	require.Len(t, bundle.Subscription.MealSubscriptionIDs, 2)
	for _, meal := range bundle.Meals {
		assert.Equal(t, 700.0, meal.Price)
		assert.Equal(t, subscriptiondomain.StatusActive, meal.Status)
		require.NotNil(t, meal.MonthlySubscriptionID)
		assert.Equal(t, bundle.Subscription.ID, *meal.MonthlySubscriptionID)
	}

	require.NotNil(t, bundle.Pricing)
	assert.Equal(t, 1400.0, bundle.Pricing.Subtotal)
	assert.Equal(t, 70.0, bundle.Pricing.Tax)

	assert.Equal(t, 1, f.reservedSlots(t, vendorA))
	assert.Equal(t, 1, f.reservedSlots(t, vendorB))
}

func TestCreateEndDateCrossesShortMonth(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)

	req := f.createRequest("key-1", vendorA)
	req.StartDate = time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)

	bundle, err := f.svc.Create(f.ctx(), req)
	require.NoError(t, err)
	assert.Equal(t,
		time.Date(2024, time.February, 28, 0, 0, 0, 0, time.UTC),
		bundle.Subscription.EndDate,
	)
}

func TestCreateReplaysIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)

	first, err := f.svc.Create(f.ctx(), f.createRequest("key-1", vendorA))
	require.NoError(t, err)

	second, err := f.svc.Create(f.ctx(), f.createRequest("key-1", vendorA))
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Subscription.ID, second.Subscription.ID)

	var count int64
	require.NoError(t, f.conn.Model(&subscriptiondomain.MonthlySubscription{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 1, f.reservedSlots(t, vendorA))
}

func TestCreateExpiredIdempotencyKeyStartsFresh(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)

	first, err := f.svc.Create(f.ctx(), f.createRequest("key-1", vendorA))
	require.NoError(t, err)

	// past the 24h claim TTL the key no longer replays
	f.clock.Advance(48 * time.Hour)

	second, err := f.svc.Create(f.ctx(), f.createRequest("key-1", vendorA))
	require.NoError(t, err)

	assert.False(t, second.Replayed)
	assert.NotEqual(t, first.Subscription.ID, second.Subscription.ID)

	var bundles int64
	require.NoError(t, f.conn.Model(&subscriptiondomain.MonthlySubscription{}).Count(&bundles).Error)
	assert.EqualValues(t, 2, bundles)

	// the stale claim is purged, not duplicated
	var claims []subscriptiondomain.IdempotencyKey
	require.NoError(t, f.conn.Find(&claims).Error)
	require.Len(t, claims, 1)
	assert.Equal(t, second.Subscription.ID, claims[0].MonthlySubscriptionID)
}

func TestCreateRejectsFullVendorWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)
	full := f.addVendor(t, intPtr(1))

	otherUser := f.node.Generate()
	otherAddress := addressdomain.Address{
		ID:        f.node.Generate(),
		UserID:    otherUser,
		Latitude:  25.2048,
		Longitude: 55.2708,
	}
	require.NoError(t, f.conn.Create(&otherAddress).Error)

	_, err := f.svc.Create(f.ctx(), f.createRequest("key-1", full))
	require.NoError(t, err)

	req := f.createRequest("key-2", vendorA, full)
	req.AddressID = otherAddress.ID.String()
	_, err = f.svc.Create(f.ctxFor(otherUser), req)

	var vErr *selection.ValidationError
	require.ErrorAs(t, err, &vErr)
	codes := make([]string, 0, len(vErr.Violations))
	for _, v := range vErr.Violations {
		codes = append(codes, v.Code)
	}
	assert.Contains(t, codes, "vendor_full")

	// the rejected request must leave nothing behind
	var count int64
	require.NoError(t, f.conn.Model(&subscriptiondomain.MonthlySubscription{}).
		Where("user_id = ?", otherUser).Count(&count).Error)
	assert.EqualValues(t, 0, count)
	assert.Equal(t, 0, f.reservedSlots(t, vendorA))
}

func TestCreateRejectsInvalidVendorID(t *testing.T) {
	f := newFixture(t)

	req := f.createRequest("key-1")
	req.VendorIDs = []string{"not-a-snowflake"}

	_, err := f.svc.Create(f.ctx(), req)
	var vErr *selection.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "invalid_vendor_id", vErr.Violations[0].Code)
}

func TestCreateRequiresUser(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)

	_, err := f.svc.Create(context.Background(), f.createRequest("key-1", vendorA))
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidUser)
}

func TestCreateRejectsForeignAddress(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)

	req := f.createRequest("key-1", vendorA)
	_, err := f.svc.Create(f.ctxFor(f.node.Generate()), req)
	assert.ErrorIs(t, err, addressdomain.ErrNotFound)
}

func TestCancelReleasesCapacity(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)
	vendorB := f.addVendor(t, nil)

	bundle, err := f.svc.Create(f.ctx(), f.createRequest("key-1", vendorA, vendorB))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(f.ctx(), subscriptiondomain.CancelSubscriptionRequest{
		ID: bundle.Subscription.ID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, subscriptiondomain.StatusCancelled, cancelled.Subscription.Status)
	for _, meal := range cancelled.Meals {
		assert.Equal(t, subscriptiondomain.StatusCancelled, meal.Status)
	}
	assert.Equal(t, 0, f.reservedSlots(t, vendorA))
	assert.Equal(t, 0, f.reservedSlots(t, vendorB))
}

func TestCancelTwiceFails(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)

	bundle, err := f.svc.Create(f.ctx(), f.createRequest("key-1", vendorA))
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx(), subscriptiondomain.CancelSubscriptionRequest{ID: bundle.Subscription.ID.String()})
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx(), subscriptiondomain.CancelSubscriptionRequest{ID: bundle.Subscription.ID.String()})
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotActive)
	assert.Equal(t, 0, f.reservedSlots(t, vendorA))
}

func TestGetByIDIsOwnerScoped(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)

	bundle, err := f.svc.Create(f.ctx(), f.createRequest("key-1", vendorA))
	require.NoError(t, err)

	got, err := f.svc.GetByID(f.ctx(), subscriptiondomain.GetSubscriptionRequest{ID: bundle.Subscription.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, bundle.Subscription.ID, got.Subscription.ID)
	assert.Len(t, got.Meals, 1)

	_, err = f.svc.GetByID(f.ctxFor(f.node.Generate()), subscriptiondomain.GetSubscriptionRequest{
		ID: bundle.Subscription.ID.String(),
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotFound)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	vendorA := f.addVendor(t, nil)
	vendorB := f.addVendor(t, nil)

	first, err := f.svc.Create(f.ctx(), f.createRequest("key-1", vendorA))
	require.NoError(t, err)
	_, err = f.svc.Create(f.ctx(), f.createRequest("key-2", vendorB))
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx(), subscriptiondomain.CancelSubscriptionRequest{ID: first.Subscription.ID.String()})
	require.NoError(t, err)

	resp, err := f.svc.List(f.ctx(), subscriptiondomain.ListSubscriptionRequest{Status: "active"})
	require.NoError(t, err)
	require.Len(t, resp.Subscriptions, 1)
	assert.Equal(t, subscriptiondomain.StatusActive, resp.Subscriptions[0].Status)

	resp, err = f.svc.List(f.ctx(), subscriptiondomain.ListSubscriptionRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Subscriptions, 2)
}

func intPtr(v int) *int {
	return &v
}
