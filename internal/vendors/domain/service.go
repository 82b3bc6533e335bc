package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/tiffin/pkg/db/pagination"
)

type ListVendorRequest struct {
	PageToken string
	PageSize  int32
	Cuisine   string
	OpenOnly  bool

	// When both are set, results carry distance and are filtered by the
	// delivery radius policy. RadiusKm narrows the search further; it is
	// capped at the policy radius.
	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64

	// When set, vendors without an active menu for this meal type are
	// excluded.
	MealType string
}

type ListVendorFilter struct {
	Cuisine  string
	OpenOnly bool
}

// VendorAvailability is a vendor decorated with delivery distance and
// remaining monthly slots.
type VendorAvailability struct {
	Vendor
	DistanceKm     *float64 `json:"distance_km,omitempty"`
	AvailableSlots int      `json:"available_slots"`
}

type ListVendorResponse struct {
	pagination.PageInfo
	Vendors []VendorAvailability `json:"vendors"`
}

type GetVendorRequest struct {
	ID string
}

type Service interface {
	List(context.Context, ListVendorRequest) (ListVendorResponse, error)
	GetByID(context.Context, GetVendorRequest) (VendorAvailability, error)
}

var (
	ErrInvalidID = errors.New("invalid_id")
	ErrNotFound  = errors.New("vendor_not_found")
)
