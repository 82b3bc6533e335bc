// Package seed loads a small demo dataset for local development.
package seed

import (
	"time"

	"github.com/bwmarrin/snowflake"
	addressdomain "github.com/smallbiznis/tiffin/internal/address/domain"
	menudomain "github.com/smallbiznis/tiffin/internal/menu/domain"
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Fixed IDs keep repeated startups idempotent.
const (
	demoUserID = int64(7177921133173346304)

	vendorSpiceRoute  = int64(7177921133173346305)
	vendorBayLeaf     = int64(7177921133173346306)
	vendorZaatarHouse = int64(7177921133173346307)

	menuSpiceRouteLunch  = int64(7177921133173346315)
	menuBayLeafLunch     = int64(7177921133173346316)
	menuZaatarHouseLunch = int64(7177921133173346317)

	addressMarinaLoft = int64(7177921133173346325)
)

// EnsureDemoData inserts demo vendors, menus and an address around Dubai.
// Existing rows are left alone.
func EnsureDemoData(conn *gorm.DB) error {
	var count int64
	if err := conn.Model(&vendordomain.Vendor{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	radius := 12.0
	capacity := 40

	vendors := []vendordomain.Vendor{
		{
			ID:        snowflake.ID(vendorSpiceRoute),
			Name:      "Spice Route Kitchen",
			Cuisine:   "indian",
			IsOpen:    true,
			Latitude:  25.2048,
			Longitude: 55.2708,
			Rating:    4.6,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:              snowflake.ID(vendorBayLeaf),
			Name:            "Bay Leaf Tiffins",
			Cuisine:         "south-indian",
			IsOpen:          true,
			Latitude:        25.2582,
			Longitude:       55.3047,
			ServiceRadiusKm: &radius,
			MonthlyCapacity: &capacity,
			Rating:          4.3,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			ID:        snowflake.ID(vendorZaatarHouse),
			Name:      "Zaatar House",
			Cuisine:   "levantine",
			IsOpen:    true,
			Latitude:  25.1972,
			Longitude: 55.2744,
			Rating:    4.8,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if err := conn.Create(&vendors).Error; err != nil {
		return err
	}

	plan := menudomain.WeeklyPlan{
		Monday:    menudomain.DayPlan{Items: []string{"dal tadka", "jeera rice"}, Sides: []string{"papad"}},
		Tuesday:   menudomain.DayPlan{Items: []string{"paneer butter masala", "roti"}},
		Wednesday: menudomain.DayPlan{Items: []string{"chole", "bhature"}},
		Thursday:  menudomain.DayPlan{Items: []string{"veg biryani"}, Extras: []string{"raita"}},
		Friday:    menudomain.DayPlan{Items: []string{"rajma", "steamed rice"}},
		Saturday:  menudomain.DayPlan{Items: []string{"aloo gobi", "paratha"}},
		Sunday:    menudomain.DayPlan{Items: []string{"thali special"}},
	}

	priceLow := 22.0
	priceMid := 25.0
	priceHigh := 28.0
	menuIDs := []int64{menuSpiceRouteLunch, menuBayLeafLunch, menuZaatarHouseLunch}
	for i, vendor := range vendors {
		menu := menudomain.Menu{
			ID:         snowflake.ID(menuIDs[i]),
			VendorID:   vendor.ID,
			MealType:   menudomain.MealTypeLunch,
			IsActive:   true,
			WeeklyPlan: datatypes.NewJSONType(plan),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := conn.Create(&menu).Error; err != nil {
			return err
		}

		items := []menudomain.MenuItem{
			{ID: snowflake.ID(menuIDs[i] + 100), MenuID: menu.ID, Name: "regular box", Price: &priceLow, CreatedAt: now, UpdatedAt: now},
			{ID: snowflake.ID(menuIDs[i] + 101), MenuID: menu.ID, Name: "standard box", Price: &priceMid, CreatedAt: now, UpdatedAt: now},
			{ID: snowflake.ID(menuIDs[i] + 102), MenuID: menu.ID, Name: "family box", Price: &priceHigh, CreatedAt: now, UpdatedAt: now},
		}
		if err := conn.Create(&items).Error; err != nil {
			return err
		}
	}

	address := addressdomain.Address{
		ID:        snowflake.ID(addressMarinaLoft),
		UserID:    snowflake.ID(demoUserID),
		Label:     "home",
		Line1:     "Marina Promenade",
		City:      "Dubai",
		Latitude:  25.0805,
		Longitude: 55.1403,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return conn.Create(&address).Error
}
