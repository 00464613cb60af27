package storage

import (
	"context"
	"errors"

	"github.com/region23/tablebook/internal/storage/models"
)

// Ошибки хранилища, которые сервисный слой переводит в доменные
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
	ErrSlotConflict   = errors.New("reservation slot conflict")
	ErrJoinConflict   = errors.New("table changed concurrently during join")
	ErrStatusConflict = errors.New("reservation status changed concurrently")
)

// TableRepository определяет интерфейс для работы со столами
type TableRepository interface {
	CreateTable(ctx context.Context, table *models.Table) error
	GetTable(ctx context.Context, id string) (*models.Table, error)
	ListTables(ctx context.Context, filter models.TableFilter) ([]*models.Table, error)
	UpdateTable(ctx context.Context, id string, patch models.TablePatch) (*models.Table, error)
	DeleteTable(ctx context.Context, id string) error

	// JoinTables помечает столы членами группы. Запись условная: если хотя бы
	// один стол уже объединен или не available, ничего не меняется и
	// возвращается ErrJoinConflict.
	JoinTables(ctx context.Context, ids []string, groupID string) error

	// UnjoinTables возвращает столы к индивидуальному состоянию
	UnjoinTables(ctx context.Context, ids []string) error
}

// ReservationRepository определяет интерфейс для работы с бронированиями
type ReservationRepository interface {
	// CreateReservation вставляет бронирование. Пересечение слотов на том же
	// столе (или на столе из той же группы) отклоняется с ErrSlotConflict.
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id string, from, to models.ReservationStatus) error
	MarkReminderSent(ctx context.Context, id string) error
}

// RestaurantRepository определяет интерфейс для работы с ресторанами
type RestaurantRepository interface {
	CreateRestaurant(ctx context.Context, r *models.Restaurant) error
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
}

// AdminRepository определяет интерфейс для работы с администраторами
type AdminRepository interface {
	CreateAdmin(ctx context.Context, a *models.Admin) error
	GetAdmin(ctx context.Context, id string) (*models.Admin, error)
	GetAdminByChatID(ctx context.Context, chatID int64) (*models.Admin, error)
	ListAdmins(ctx context.Context, restaurantID string) ([]*models.Admin, error)
	LinkAdminTelegram(ctx context.Context, adminID string, chatID int64, username string) error
	SetAdminLanguage(ctx context.Context, adminID, language string) error
}

// Storage объединяет все репозитории в единый интерфейс
type Storage interface {
	TableRepository
	ReservationRepository
	RestaurantRepository
	AdminRepository
	Close() error
	Ping(ctx context.Context) error
}
