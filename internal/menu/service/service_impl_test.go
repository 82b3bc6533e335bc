package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tiffin/internal/menu/domain"
	menurepository "github.com/smallbiznis/tiffin/internal/menu/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Menu{}, &domain.MenuItem{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{DB: conn, Log: zap.NewNop(), Repo: menurepository.Provide()})
	return svc, conn, node
}

func TestActiveMenuLoadsItems(t *testing.T) {
	svc, conn, node := newTestService(t)

	vendorID := node.Generate()
	price := 22.0
	menu := domain.Menu{
		ID:       node.Generate(),
		VendorID: vendorID,
		MealType: domain.MealTypeLunch,
		IsActive: true,
		WeeklyPlan: datatypes.NewJSONType(domain.WeeklyPlan{
			Monday: domain.DayPlan{Items: []string{"thali"}},
		}),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, conn.Create(&menu).Error)
	require.NoError(t, conn.Create(&domain.MenuItem{
		ID:     node.Generate(),
		MenuID: menu.ID,
		Name:   "thali",
		Price:  &price,
	}).Error)

	got, err := svc.ActiveMenu(context.Background(), vendorID, domain.MealTypeLunch)
	require.NoError(t, err)
	assert.Equal(t, menu.ID, got.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "thali", got.Items[0].Name)
}

func TestActiveMenuMissing(t *testing.T) {
	svc, _, node := newTestService(t)

	_, err := svc.ActiveMenu(context.Background(), node.Generate(), domain.MealTypeDinner)
	assert.ErrorIs(t, err, domain.ErrNoActiveMenu)
}

func TestActiveMenuRejectsEmptyMenu(t *testing.T) {
	svc, conn, node := newTestService(t)

	vendorID := node.Generate()
	menu := domain.Menu{
		ID:         node.Generate(),
		VendorID:   vendorID,
		MealType:   domain.MealTypeLunch,
		IsActive:   true,
		WeeklyPlan: datatypes.NewJSONType(domain.WeeklyPlan{}),
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, conn.Create(&menu).Error)

	_, err := svc.ActiveMenu(context.Background(), vendorID, domain.MealTypeLunch)
	assert.ErrorIs(t, err, domain.ErrNoActiveMenu)
}

func TestParseMealType(t *testing.T) {
	mealType, err := domain.ParseMealType(" Lunch ")
	require.NoError(t, err)
	assert.Equal(t, domain.MealTypeLunch, mealType)

	_, err = domain.ParseMealType("brunch")
	assert.ErrorIs(t, err, domain.ErrInvalidMealType)
}
