package models

import (
	"regexp"
	"time"
)

var tableNameRe = regexp.MustCompile(`^T\d+$`)

// ValidTableName проверяет имя стола вида T<n>. Дефис в имени запрещен,
// так как из имен через дефис собирается идентификатор группы.
func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

// TableStatus определяет статус стола
type TableStatus string

const (
	TableAvailable   TableStatus = "available"
	TableMaintenance TableStatus = "maintenance"
	TableReserved    TableStatus = "reserved"
)

// Valid проверяет, что статус входит в допустимый набор
func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableMaintenance, TableReserved:
		return true
	}
	return false
}

// ReservationStatus определяет статус бронирования
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationDiscarded ReservationStatus = "discarded"
)

// Restaurant представляет ресторан, которому принадлежат столы
type Restaurant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Admin представляет администратора ресторана
type Admin struct {
	ID               string    `json:"id" db:"id"`
	RestaurantID     string    `json:"restaurant_id" db:"restaurant_id"`
	Email            string    `json:"email" db:"email"`
	Name             string    `json:"name" db:"name"`
	TelegramChatID   *int64    `json:"telegram_chat_id,omitempty" db:"telegram_chat_id"`
	TelegramUsername *string   `json:"telegram_username,omitempty" db:"telegram_username"`
	Language         string    `json:"language" db:"language"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// HasTelegram проверяет, привязан ли к администратору Telegram чат
func (a *Admin) HasTelegram() bool {
	return a.TelegramChatID != nil && *a.TelegramChatID != 0
}

// Table представляет физический стол
type Table struct {
	ID            string      `json:"id" db:"id"`
	RestaurantID  string      `json:"restaurant_id" db:"restaurant_id"`
	Name          string      `json:"name" db:"name"`
	Capacity      int         `json:"capacity" db:"capacity"`
	Location      *string     `json:"location" db:"location"`
	Status        TableStatus `json:"status" db:"status"`
	IsJoined      bool        `json:"is_joined" db:"is_joined"`
	JoinedGroupID *string     `json:"joined_group_id" db:"joined_group_id"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// GroupID возвращает ключ группы или пустую строку
func (t *Table) GroupID() string {
	if t.JoinedGroupID == nil {
		return ""
	}
	return *t.JoinedGroupID
}

// LocationValue возвращает зону зала или пустую строку
func (t *Table) LocationValue() string {
	if t.Location == nil {
		return ""
	}
	return *t.Location
}

// TableFilter задает условия выборки столов
type TableFilter struct {
	RestaurantID  string
	Name          string
	Status        TableStatus
	JoinedGroupID string
}

// TablePatch описывает частичное обновление стола; nil поля не меняются.
// Пустая строка в Location очищает зону.
type TablePatch struct {
	Name     *string
	Capacity *int
	Location *string
	Status   *TableStatus
}

// Empty проверяет, что патч ничего не меняет
func (p TablePatch) Empty() bool {
	return p.Name == nil && p.Capacity == nil && p.Location == nil && p.Status == nil
}

// Reservation представляет бронирование стола
type Reservation struct {
	ID              string            `json:"id" db:"id"`
	RestaurantID    string            `json:"restaurant_id" db:"restaurant_id"`
	TableID         *string           `json:"table_id" db:"table_id"`
	CustomerID      string            `json:"customer_id,omitempty" db:"customer_id"`
	ClientName      string            `json:"client_name" db:"client_name"`
	ClientContact   string            `json:"client_contact" db:"client_contact"`
	PartySize       int               `json:"party_size" db:"party_size"`
	ReservationDate string            `json:"reservation_date" db:"reservation_date"`
	ReservationTime string            `json:"reservation_time" db:"reservation_time"`
	StartsAt        time.Time         `json:"starts_at" db:"starts_at"`
	EndsAt          time.Time         `json:"ends_at" db:"ends_at"`
	Status          ReservationStatus `json:"status" db:"status"`
	ReminderSent    bool              `json:"reminder_sent" db:"reminder_sent"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// AssignedTable возвращает id стола или пустую строку
func (r *Reservation) AssignedTable() string {
	if r.TableID == nil {
		return ""
	}
	return *r.TableID
}

// IsPending проверяет, ожидает ли бронирование подтверждения
func (r *Reservation) IsPending() bool {
	return r.Status == ReservationPending
}

// ReservationFilter задает условия выборки бронирований
type ReservationFilter struct {
	RestaurantID string
	TableIDs     []string
	Status       ReservationStatus
	ReminderSent *bool
	Date         string
}
