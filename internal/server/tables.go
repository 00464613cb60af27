package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/region23/tablebook/internal/storage/models"
	"github.com/region23/tablebook/internal/tables"
	apperrors "github.com/region23/tablebook/pkg/errors"
)

type restaurantQuery struct {
	RestaurantID string `form:"restaurant_id"`
}

type listTablesQuery struct {
	RestaurantID string `form:"restaurant_id"`
	Status       string `form:"status" binding:"omitempty,table_status"`
	Location     string `form:"location"`
}

type createTableRequest struct {
	RestaurantID string  `json:"restaurant_id"`
	Name         string  `json:"name" binding:"omitempty,max=32,table_name"`
	Capacity     int     `json:"capacity" binding:"required,min=1"`
	Location     *string `json:"location"`
	Status       string  `json:"status" binding:"omitempty,table_status"`
}

type updateTableRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=32,table_name"`
	Capacity *int    `json:"capacity" binding:"omitempty,min=1"`
	Location *string `json:"location"`
	Status   *string `json:"status" binding:"omitempty,table_status"`
}

type joinTablesRequest struct {
	RestaurantID string   `json:"restaurant_id"`
	TableNumbers []string `json:"table_numbers" binding:"required"`
}

type unjoinTablesRequest struct {
	RestaurantID  string `json:"restaurant_id"`
	JoinedGroupID string `json:"joined_group_id" binding:"required"`
}

func (s *Server) handleListTables(c *gin.Context) {
	var q listTablesQuery
	if !s.bindQuery(c, &q) {
		return
	}
	restaurantID, err := restaurantScope(c, q.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	units, err := s.deps.Tables.ListUnits(c.Request.Context(), restaurantID, tables.UnitFilter{
		Status:   models.TableStatus(q.Status),
		Location: q.Location,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	if units == nil {
		units = []tables.Unit{}
	}
	c.JSON(http.StatusOK, units)
}

func (s *Server) handleTableStats(c *gin.Context) {
	var q restaurantQuery
	if !s.bindQuery(c, &q) {
		return
	}
	restaurantID, err := restaurantScope(c, q.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	stats, err := s.deps.Tables.Statistics(c.Request.Context(), restaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleNextTableName(c *gin.Context) {
	var q restaurantQuery
	if !s.bindQuery(c, &q) {
		return
	}
	restaurantID, err := restaurantScope(c, q.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	name, err := s.deps.Tables.NextTableName(c.Request.Context(), restaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (s *Server) handleCreateTable(c *gin.Context) {
	var req createTableRequest
	if !s.bindJSON(c, &req) {
		return
	}
	restaurantID, err := restaurantScope(c, req.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if _, err := s.requireRestaurant(c, restaurantID); err != nil {
		s.respondError(c, err)
		return
	}

	t := &models.Table{
		RestaurantID: restaurantID,
		Name:         req.Name,
		Capacity:     req.Capacity,
		Location:     req.Location,
		Status:       models.TableStatus(req.Status),
	}
	if err := s.deps.Tables.CreateTable(c.Request.Context(), t); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleUpdateTable(c *gin.Context) {
	var req updateTableRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if _, err := s.scopedTable(c, c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}

	patch := models.TablePatch{
		Name:     req.Name,
		Capacity: req.Capacity,
		Location: req.Location,
	}
	if req.Status != nil {
		status := models.TableStatus(*req.Status)
		patch.Status = &status
	}

	updated, err := s.deps.Tables.UpdateTable(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteTable(c *gin.Context) {
	t, err := s.scopedTable(c, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	if err := s.deps.Tables.DeleteTable(c.Request.Context(), t.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Table " + t.Name + " deleted"})
}

func (s *Server) handleJoinTables(c *gin.Context) {
	var req joinTablesRequest
	if !s.bindJSON(c, &req) {
		return
	}
	restaurantID, err := restaurantScope(c, req.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	group, err := s.deps.Tables.Join(c.Request.Context(), restaurantID, req.TableNumbers)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (s *Server) handleUnjoinTables(c *gin.Context) {
	var req unjoinTablesRequest
	if !s.bindJSON(c, &req) {
		return
	}
	restaurantID, err := restaurantScope(c, req.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	released, err := s.deps.Tables.Unjoin(c.Request.Context(), restaurantID, req.JoinedGroupID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, released)
}

// scopedTable загружает стол и проверяет, что он принадлежит ресторану вызывающего
func (s *Server) scopedTable(c *gin.Context, id string) (*models.Table, error) {
	t, err := s.deps.Tables.GetTable(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if claims, ok := callerClaims(c); ok && claims.RestaurantID != "" && claims.RestaurantID != t.RestaurantID {
		return nil, apperrors.ErrForbidden.WithContext(map[string]string{"table_id": id})
	}
	return t, nil
}
