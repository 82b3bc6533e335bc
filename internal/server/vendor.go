package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tiffin/internal/usercontext"
	vendordomain "github.com/smallbiznis/tiffin/internal/vendors/domain"
	"github.com/smallbiznis/tiffin/pkg/db/pagination"
)

func (s *Server) ListVendors(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Cuisine  string   `form:"cuisine"`
		OpenOnly bool     `form:"open_only"`
		MealType string   `form:"meal_type"`
		Lat      *float64 `form:"lat"`
		Lon      *float64 `form:"lon"`
		Radius   *float64 `form:"radius"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.vendorSvc.List(c.Request.Context(), vendordomain.ListVendorRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Cuisine:   strings.TrimSpace(query.Cuisine),
		OpenOnly:  query.OpenOnly,
		MealType:  strings.TrimSpace(query.MealType),
		Latitude:  query.Lat,
		Longitude: query.Lon,
		RadiusKm:  query.Radius,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetVendorByID(c *gin.Context) {
	resp, err := s.vendorSvc.GetByID(c.Request.Context(), vendordomain.GetVendorRequest{
		ID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAddresses(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	addresses, err := s.addressSvc.ListByUser(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": addresses})
}
