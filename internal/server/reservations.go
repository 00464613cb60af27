package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/region23/tablebook/internal/reservation"
	"github.com/region23/tablebook/internal/storage/models"
)

type createReservationRequest struct {
	RestaurantID    string `json:"restaurant_id"`
	CustomerID      string `json:"customer_id"`
	ClientName      string `json:"client_name" binding:"required,max=200"`
	ClientContact   string `json:"client_contact" binding:"required,max=200"`
	PartySize       int    `json:"party_size" binding:"required,min=1"`
	ReservationDate string `json:"reservation_date" binding:"required,isodate"`
	ReservationTime string `json:"reservation_time" binding:"required,hhmm"`
}

type createReservationResponse struct {
	ReservationID string                   `json:"reservation_id"`
	Status        models.ReservationStatus `json:"status"`
	TableID       string                   `json:"table_id"`
	Message       string                   `json:"message"`
}

type dashboardQuery struct {
	RestaurantID string `form:"restaurant_id"`
	Date         string `form:"date" binding:"omitempty,isodate"`
}

func (s *Server) handleCreateReservation(c *gin.Context) {
	var req createReservationRequest
	if !s.bindJSON(c, &req) {
		return
	}
	restaurantID, err := restaurantScope(c, req.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	r, err := s.deps.Allocator.Allocate(c.Request.Context(), reservation.Request{
		RestaurantID:  restaurantID,
		CustomerID:    req.CustomerID,
		ClientName:    req.ClientName,
		ClientContact: req.ClientContact,
		PartySize:     req.PartySize,
		Date:          req.ReservationDate,
		Time:          req.ReservationTime,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createReservationResponse{
		ReservationID: r.ID,
		Status:        r.Status,
		TableID:       r.AssignedTable(),
		Message:       "Reservation created",
	})
}

func (s *Server) handlePendingReservations(c *gin.Context) {
	var q restaurantQuery
	if !s.bindQuery(c, &q) {
		return
	}
	restaurantID, err := restaurantScope(c, q.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	list, err := s.deps.Reservations.ListPending(c.Request.Context(), restaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleDashboardStatus(c *gin.Context) {
	var q dashboardQuery
	if !s.bindQuery(c, &q) {
		return
	}
	restaurantID, err := restaurantScope(c, q.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	dashboard, err := s.deps.Reservations.DashboardStatus(c.Request.Context(), restaurantID, q.Date)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
