package scheduler

import (
	"context"

	"github.com/region23/tablebook/internal/storage/models"
)

// Notifier доставляет администратору уведомление о новой брони
type Notifier interface {
	NotifyReservation(ctx context.Context, admin *models.Admin, r *models.Reservation) error
}

// Repository содержит операции хранилища, нужные циклу напоминаний
type Repository interface {
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	MarkReminderSent(ctx context.Context, id string) error
	GetTable(ctx context.Context, id string) (*models.Table, error)
	ListAdmins(ctx context.Context, restaurantID string) ([]*models.Admin, error)
}
