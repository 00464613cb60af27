package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/region23/tablebook/internal/storage"
	"github.com/region23/tablebook/internal/storage/models"
)

const reservationColumns = `id, restaurant_id, table_id, customer_id, client_name, client_contact, party_size,
	reservation_date, reservation_time, starts_at, ends_at, status, reminder_sent, created_at, updated_at`

func scanReservation(row scanner) (*models.Reservation, error) {
	r := &models.Reservation{}
	var startsAt, endsAt int64
	err := row.Scan(
		&r.ID, &r.RestaurantID, &r.TableID, &r.CustomerID, &r.ClientName, &r.ClientContact,
		&r.PartySize, &r.ReservationDate, &r.ReservationTime, &startsAt, &endsAt,
		&r.Status, &r.ReminderSent, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.StartsAt = time.Unix(startsAt, 0).UTC()
	r.EndsAt = time.Unix(endsAt, 0).UTC()
	return r, nil
}

// CreateReservation создает новое бронирование
func (s *SQLiteStorage) CreateReservation(ctx context.Context, r *models.Reservation) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = models.ReservationPending
	}
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now

	query := `INSERT INTO reservations (` + reservationColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.RestaurantID, r.TableID, r.CustomerID, r.ClientName, r.ClientContact,
		r.PartySize, r.ReservationDate, r.ReservationTime, r.StartsAt.Unix(), r.EndsAt.Unix(),
		string(r.Status), boolToInt(r.ReminderSent), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", translateError(err))
	}

	return nil
}

// GetReservation получает бронирование по ID
func (s *SQLiteStorage) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`

	r, err := scanReservation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", translateError(err))
	}

	return r, nil
}

// ListReservations получает бронирования по фильтру, упорядоченные по началу слота
func (s *SQLiteStorage) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	// Пустой, но заданный список столов означает пустую выборку
	if filter.TableIDs != nil && len(filter.TableIDs) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	if filter.RestaurantID != "" {
		where = append(where, "restaurant_id = ?")
		args = append(args, filter.RestaurantID)
	}
	if len(filter.TableIDs) > 0 {
		where = append(where, "table_id IN ("+placeholders(len(filter.TableIDs))+")")
		for _, id := range filter.TableIDs {
			args = append(args, id)
		}
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ReminderSent != nil {
		where = append(where, "reminder_sent = ?")
		args = append(args, boolToInt(*filter.ReminderSent))
	}
	if filter.Date != "" {
		where = append(where, "reservation_date = ?")
		args = append(args, filter.Date)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY starts_at, created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}

	return reservations, nil
}

// UpdateReservationStatus меняет статус, только если текущий статус равен from
func (s *SQLiteStorage) UpdateReservationStatus(ctx context.Context, id string, from, to models.ReservationStatus) error {
	query := `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

	result, err := s.db.ExecContext(ctx, query, string(to), s.now(), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("reservation %s: %w", id, storage.ErrStatusConflict)
	}

	return nil
}

// MarkReminderSent помечает бронирование как уведомленное. Повторный вызов безопасен.
func (s *SQLiteStorage) MarkReminderSent(ctx context.Context, id string) error {
	query := `UPDATE reservations SET reminder_sent = 1, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to mark reminder sent: %w", storage.ErrNotFound)
	}

	return nil
}
