package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/region23/tablebook/internal/bot/i18n"
	"github.com/region23/tablebook/internal/storage"
	"github.com/region23/tablebook/internal/storage/models"
	apperrors "github.com/region23/tablebook/pkg/errors"
	"github.com/region23/tablebook/pkg/logger"
)

var errDuplicateAdmin = apperrors.New(apperrors.KindConflict, "DUPLICATE_ADMIN", "admin with this email already exists")

type createRestaurantRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

type createAdminRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"max=200"`
	Language string `json:"language" binding:"omitempty,oneof=en pt"`
}

func (s *Server) handleCreateRestaurant(c *gin.Context) {
	var req createRestaurantRequest
	if !s.bindJSON(c, &req) {
		return
	}

	r := &models.Restaurant{Name: strings.TrimSpace(req.Name)}
	if err := s.deps.Storage.CreateRestaurant(c.Request.Context(), r); err != nil {
		s.respondError(c, apperrors.Upstream(err))
		return
	}

	s.logger.Info("Restaurant created", logger.String("restaurant_id", r.ID))
	c.JSON(http.StatusCreated, r)
}

func (s *Server) handleGetRestaurant(c *gin.Context) {
	r, err := s.requireRestaurant(c, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleCreateAdmin(c *gin.Context) {
	var req createAdminRequest
	if !s.bindJSON(c, &req) {
		return
	}
	restaurantID := c.Param("id")
	if _, err := s.requireRestaurant(c, restaurantID); err != nil {
		s.respondError(c, err)
		return
	}

	a := &models.Admin{
		RestaurantID: restaurantID,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		Language:     i18n.Normalize(req.Language),
	}
	err := s.deps.Storage.CreateAdmin(c.Request.Context(), a)
	if errors.Is(err, storage.ErrDuplicate) {
		s.respondError(c, errDuplicateAdmin.WithContext(map[string]string{"email": a.Email}))
		return
	}
	if err != nil {
		s.respondError(c, apperrors.Upstream(err))
		return
	}

	s.logger.Info("Admin created",
		logger.String("restaurant_id", restaurantID),
		logger.String("admin_id", a.ID))
	c.JSON(http.StatusCreated, a)
}

// requireRestaurant проверяет, что ресторан существует и доступен вызывающему
func (s *Server) requireRestaurant(c *gin.Context, id string) (*models.Restaurant, error) {
	if claims, ok := callerClaims(c); ok && claims.RestaurantID != "" && claims.RestaurantID != id {
		return nil, apperrors.ErrForbidden.WithContext(map[string]string{"restaurant_id": id})
	}

	r, err := s.deps.Storage.GetRestaurant(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.ErrRestaurantNotFound.WithContext(map[string]string{"id": id})
	}
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to get restaurant: %w", err))
	}
	return r, nil
}
