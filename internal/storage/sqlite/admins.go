package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/region23/tablebook/internal/storage"
	"github.com/region23/tablebook/internal/storage/models"
)

const adminColumns = `id, restaurant_id, email, name, telegram_chat_id, telegram_username, language, created_at`

func scanAdmin(row scanner) (*models.Admin, error) {
	a := &models.Admin{}
	err := row.Scan(
		&a.ID, &a.RestaurantID, &a.Email, &a.Name, &a.TelegramChatID,
		&a.TelegramUsername, &a.Language, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateRestaurant создает ресторан
func (s *SQLiteStorage) CreateRestaurant(ctx context.Context, r *models.Restaurant) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = s.now()

	query := `INSERT INTO restaurants (id, name, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, r.ID, r.Name, r.CreatedAt); err != nil {
		return fmt.Errorf("failed to create restaurant: %w", translateError(err))
	}

	return nil
}

// GetRestaurant получает ресторан по ID
func (s *SQLiteStorage) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	r := &models.Restaurant{}
	query := `SELECT id, name, created_at FROM restaurants WHERE id = ?`

	if err := s.db.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", translateError(err))
	}

	return r, nil
}

// CreateAdmin создает администратора ресторана
func (s *SQLiteStorage) CreateAdmin(ctx context.Context, a *models.Admin) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Language == "" {
		a.Language = "en"
	}
	a.CreatedAt = s.now()

	query := `INSERT INTO admins (` + adminColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.RestaurantID, a.Email, a.Name, a.TelegramChatID,
		a.TelegramUsername, a.Language, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", translateError(err))
	}

	return nil
}

// GetAdmin получает администратора по ID
func (s *SQLiteStorage) GetAdmin(ctx context.Context, id string) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = ?`

	a, err := scanAdmin(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", translateError(err))
	}

	return a, nil
}

// GetAdminByChatID получает администратора по Telegram chat_id
func (s *SQLiteStorage) GetAdminByChatID(ctx context.Context, chatID int64) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE telegram_chat_id = ?`

	a, err := scanAdmin(s.db.QueryRowContext(ctx, query, chatID))
	if err != nil {
		return nil, fmt.Errorf("failed to get admin by chat id: %w", translateError(err))
	}

	return a, nil
}

// ListAdmins получает администраторов ресторана
func (s *SQLiteStorage) ListAdmins(ctx context.Context, restaurantID string) ([]*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE restaurant_id = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var admins []*models.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate admins: %w", err)
	}

	return admins, nil
}

// LinkAdminTelegram привязывает Telegram чат к администратору.
// Чат может принадлежать только одному администратору, прежняя привязка снимается.
func (s *SQLiteStorage) LinkAdminTelegram(ctx context.Context, adminID string, chatID int64, username string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin link transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE admins SET telegram_chat_id = NULL, telegram_username = NULL WHERE telegram_chat_id = ? AND id != ?`,
		chatID, adminID,
	); err != nil {
		return fmt.Errorf("failed to release chat id: %w", err)
	}

	var usernameArg any
	if username != "" {
		usernameArg = username
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE admins SET telegram_chat_id = ?, telegram_username = ? WHERE id = ?`,
		chatID, usernameArg, adminID,
	)
	if err != nil {
		return fmt.Errorf("failed to link telegram: %w", translateError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to link telegram: %w", storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit link: %w", err)
	}

	return nil
}

// SetAdminLanguage устанавливает язык уведомлений администратора
func (s *SQLiteStorage) SetAdminLanguage(ctx context.Context, adminID, language string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE admins SET language = ? WHERE id = ?`, language, adminID)
	if err != nil {
		return fmt.Errorf("failed to set admin language: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to set admin language: %w", storage.ErrNotFound)
	}

	return nil
}
