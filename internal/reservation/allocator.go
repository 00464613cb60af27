package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/region23/tablebook/internal/storage"
	"github.com/region23/tablebook/internal/storage/models"
	"github.com/region23/tablebook/internal/tables"
	apperrors "github.com/region23/tablebook/pkg/errors"
	"github.com/region23/tablebook/pkg/logger"
	"github.com/region23/tablebook/pkg/metrics"
)

// UnitLister отдает бронируемые единицы ресторана, отсортированные по имени
type UnitLister interface {
	ListUnits(ctx context.Context, restaurantID string, filter tables.UnitFilter) ([]tables.Unit, error)
}

// Request описывает запрос на бронирование
type Request struct {
	RestaurantID  string
	CustomerID    string
	ClientName    string
	ClientContact string
	PartySize     int
	Date          string
	Time          string
}

// Allocator подбирает стол жадным first-fit и создает бронь
type Allocator struct {
	units        UnitLister
	reservations storage.ReservationRepository
	slot         time.Duration
	location     *time.Location
	logger       *logger.Logger
}

// NewAllocator создает распределитель броней
func NewAllocator(
	units UnitLister,
	reservations storage.ReservationRepository,
	slot time.Duration,
	location *time.Location,
	log *logger.Logger,
) *Allocator {
	if location == nil {
		location = time.Local
	}
	return &Allocator{
		units:        units,
		reservations: reservations,
		slot:         slot,
		location:     location,
		logger:       log.Component("allocator"),
	}
}

// Allocate выбирает первую по имени единицу достаточной вместимости без
// пересечений и записывает на нее бронь со статусом pending.
func (a *Allocator) Allocate(ctx context.Context, req Request) (*models.Reservation, error) {
	if req.PartySize <= 0 {
		return nil, apperrors.ErrInvalidPartySize
	}
	if strings.TrimSpace(req.RestaurantID) == "" {
		return nil, apperrors.Validation("restaurant_id is required")
	}
	start, err := ParseStart(req.Date, req.Time, a.location)
	if err != nil {
		return nil, err
	}
	requested := NewSlot(start, a.slot)

	units, err := a.units.ListUnits(ctx, req.RestaurantID, tables.UnitFilter{})
	if err != nil {
		return nil, err
	}

	allTableIDs := make([]string, 0, len(units))
	candidates := make([]tables.Unit, 0, len(units))
	for _, u := range units {
		allTableIDs = append(allTableIDs, u.TableIDs()...)
		if u.Capacity() >= req.PartySize {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		metrics.RecordAllocationFailure("no_capacity")
		return nil, apperrors.ErrNoCapacity.WithContext(map[string]int{"party_size": req.PartySize})
	}

	existing, err := a.reservations.ListReservations(ctx, models.ReservationFilter{TableIDs: allTableIDs})
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to list reservations: %w", err))
	}
	busy := make(map[string][]Slot, len(existing))
	for _, r := range existing {
		id := r.AssignedTable()
		if id == "" {
			continue
		}
		busy[id] = append(busy[id], Slot{Start: r.StartsAt, End: r.EndsAt})
	}

	for _, u := range candidates {
		if conflicts(busy, u.TableIDs(), requested) {
			continue
		}

		r := a.newReservation(req, u.PrimaryTableID(), requested)
		err := a.reservations.CreateReservation(ctx, r)
		if errors.Is(err, storage.ErrSlotConflict) {
			// Слот заняли между проверкой и вставкой
			metrics.RecordAllocationRetry()
			a.logger.Warn("Slot taken concurrently, trying next table",
				logger.String("restaurant_id", req.RestaurantID),
				logger.String("unit", u.Name()))
			continue
		}
		if err != nil {
			return nil, apperrors.Upstream(fmt.Errorf("failed to create reservation: %w", err))
		}

		metrics.RecordReservationCreated()
		a.logger.Info("Reservation created",
			logger.String("reservation_id", r.ID),
			logger.String("restaurant_id", r.RestaurantID),
			logger.String("unit", u.Name()),
			logger.Int("party_size", r.PartySize),
			logger.String("starts_at", r.StartsAt.Format(time.RFC3339)))
		return r, nil
	}

	metrics.RecordAllocationFailure("no_availability")
	return nil, apperrors.ErrNoAvailability.WithContext(map[string]string{
		"reservation_date": req.Date,
		"reservation_time": req.Time,
	})
}

func (a *Allocator) newReservation(req Request, tableID string, slot Slot) *models.Reservation {
	return &models.Reservation{
		RestaurantID:    req.RestaurantID,
		TableID:         &tableID,
		CustomerID:      req.CustomerID,
		ClientName:      req.ClientName,
		ClientContact:   req.ClientContact,
		PartySize:       req.PartySize,
		ReservationDate: slot.Start.Format(dateLayout),
		ReservationTime: slot.Start.Format(timeLayout),
		StartsAt:        slot.Start,
		EndsAt:          slot.End,
		Status:          models.ReservationPending,
		ReminderSent:    false,
	}
}

func conflicts(busy map[string][]Slot, tableIDs []string, requested Slot) bool {
	for _, id := range tableIDs {
		for _, s := range busy[id] {
			if s.Overlaps(requested) {
				return true
			}
		}
	}
	return false
}
