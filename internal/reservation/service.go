package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/region23/tablebook/internal/storage"
	"github.com/region23/tablebook/internal/storage/models"
	"github.com/region23/tablebook/internal/tables"
	apperrors "github.com/region23/tablebook/pkg/errors"
	"github.com/region23/tablebook/pkg/logger"
	"github.com/region23/tablebook/pkg/metrics"
)

// Repository объединяет то, что сервису нужно от хранилища
type Repository interface {
	storage.ReservationRepository
	ListTables(ctx context.Context, filter models.TableFilter) ([]*models.Table, error)
}

// Service управляет жизненным циклом броней после создания
type Service struct {
	repo     Repository
	location *time.Location
	logger   *logger.Logger
	now      func() time.Time
}

// NewService создает сервис броней
func NewService(repo Repository, location *time.Location, log *logger.Logger) *Service {
	if location == nil {
		location = time.Local
	}
	return &Service{
		repo:     repo,
		location: location,
		logger:   log.Component("reservations"),
		now:      time.Now,
	}
}

// Get возвращает бронь по id
func (s *Service) Get(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := s.repo.GetReservation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.ErrReservationNotFound.WithContext(map[string]string{"id": id})
	}
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to get reservation: %w", err))
	}
	return r, nil
}

// ListPending возвращает ожидающие подтверждения брони ресторана
func (s *Service) ListPending(ctx context.Context, restaurantID string) ([]*models.Reservation, error) {
	list, err := s.repo.ListReservations(ctx, models.ReservationFilter{
		RestaurantID: restaurantID,
		Status:       models.ReservationPending,
	})
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to list pending reservations: %w", err))
	}
	if list == nil {
		list = []*models.Reservation{}
	}
	return list, nil
}

// Confirm переводит бронь в confirmed
func (s *Service) Confirm(ctx context.Context, id string) (*models.Reservation, error) {
	return s.SetStatus(ctx, id, models.ReservationConfirmed)
}

// Discard переводит бронь в discarded
func (s *Service) Discard(ctx context.Context, id string) (*models.Reservation, error) {
	return s.SetStatus(ctx, id, models.ReservationDiscarded)
}

// SetStatus выполняет переход pending -> target. Повтор того же перехода
// ничего не меняет.
func (s *Service) SetStatus(ctx context.Context, id string, target models.ReservationStatus) (*models.Reservation, error) {
	if target != models.ReservationConfirmed && target != models.ReservationDiscarded {
		return nil, apperrors.Validation("unsupported status %q", target)
	}

	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == target {
		return r, nil
	}
	if r.Status != models.ReservationPending {
		return nil, s.transitionError(r, target)
	}

	err = s.repo.UpdateReservationStatus(ctx, id, models.ReservationPending, target)
	if errors.Is(err, storage.ErrStatusConflict) {
		// Статус успели поменять параллельно; перечитываем
		current, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == target {
			return current, nil
		}
		return nil, s.transitionError(current, target)
	}
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to update reservation status: %w", err))
	}

	metrics.RecordStatusChange(string(target))
	s.logger.Info("Reservation status changed",
		logger.String("reservation_id", id),
		logger.String("status", string(target)))

	r.Status = target
	return r, nil
}

func (s *Service) transitionError(r *models.Reservation, target models.ReservationStatus) error {
	return apperrors.ErrInvalidTransition.
		WithMessage("reservation is already %s", r.Status).
		WithContext(map[string]string{"from": string(r.Status), "to": string(target)})
}

// DashboardReservation содержит сведения о брони для панели
type DashboardReservation struct {
	ID              string `json:"id"`
	CustomerName    string `json:"customer_name"`
	ReservationTime string `json:"reservation_time"`
	PartySize       int    `json:"party_size"`
	CustomerPhone   string `json:"customer_phone"`
}

// DashboardTable описывает состояние стола на выбранный день
type DashboardTable struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Capacity    int                   `json:"capacity"`
	Location    *string               `json:"location"`
	Status      string                `json:"status"`
	Reservation *DashboardReservation `json:"reservation,omitempty"`
}

// Dashboard представляет статус всех столов на дату
type Dashboard struct {
	Date   string           `json:"date"`
	Tables []DashboardTable `json:"tables"`
}

// DashboardStatus собирает статус столов ресторана на дату. Пустая дата
// означает сегодня.
func (s *Service) DashboardStatus(ctx context.Context, restaurantID, date string) (*Dashboard, error) {
	if date == "" {
		date = s.now().In(s.location).Format(dateLayout)
	}
	if _, err := ParseDate(date, s.location); err != nil {
		return nil, err
	}

	all, err := s.repo.ListTables(ctx, models.TableFilter{RestaurantID: restaurantID})
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to list tables: %w", err))
	}
	sort.SliceStable(all, func(i, j int) bool {
		return tables.LessName(all[i].Name, all[j].Name)
	})
	reservations, err := s.repo.ListReservations(ctx, models.ReservationFilter{
		RestaurantID: restaurantID,
		Date:         date,
	})
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to list reservations: %w", err))
	}

	// Бронь на любом столе группы занимает всю группу
	byTable := make(map[string]*models.Reservation)
	for _, r := range reservations {
		if r.Status == models.ReservationDiscarded || r.AssignedTable() == "" {
			continue
		}
		if _, ok := byTable[r.AssignedTable()]; !ok {
			byTable[r.AssignedTable()] = r
		}
	}
	byGroup := make(map[string]*models.Reservation)
	for _, t := range all {
		if r, ok := byTable[t.ID]; ok && t.GroupID() != "" {
			if prev, seen := byGroup[t.GroupID()]; !seen || r.StartsAt.Before(prev.StartsAt) {
				byGroup[t.GroupID()] = r
			}
		}
	}

	dashboard := &Dashboard{Date: date, Tables: make([]DashboardTable, 0, len(all))}
	for _, t := range all {
		entry := DashboardTable{
			ID:       t.ID,
			Name:     t.Name,
			Capacity: t.Capacity,
			Location: t.Location,
			Status:   string(t.Status),
		}

		r := byTable[t.ID]
		if r == nil && t.GroupID() != "" {
			r = byGroup[t.GroupID()]
		}
		if r != nil {
			entry.Status = string(r.Status)
			entry.Reservation = &DashboardReservation{
				ID:              r.ID,
				CustomerName:    r.ClientName,
				ReservationTime: r.ReservationTime,
				PartySize:       r.PartySize,
				CustomerPhone:   r.ClientContact,
			}
		}
		dashboard.Tables = append(dashboard.Tables, entry)
	}
	return dashboard, nil
}
