package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tiffin/pkg/geo"
)

type Service interface {
	// Resolve returns the delivery point for an address owned by userID.
	// Addresses belonging to someone else resolve to ErrNotFound.
	Resolve(ctx context.Context, userID, addressID snowflake.ID) (geo.Point, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]*Address, error)
}

var ErrNotFound = errors.New("address_not_found")
