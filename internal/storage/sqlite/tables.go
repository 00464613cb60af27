package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/region23/tablebook/internal/storage"
	"github.com/region23/tablebook/internal/storage/models"
)

const tableColumns = `id, restaurant_id, name, capacity, location, status, is_joined, joined_group_id, created_at, updated_at`

func scanTable(row scanner) (*models.Table, error) {
	t := &models.Table{}
	err := row.Scan(
		&t.ID, &t.RestaurantID, &t.Name, &t.Capacity, &t.Location, &t.Status,
		&t.IsJoined, &t.JoinedGroupID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTable создает новый стол
func (s *SQLiteStorage) CreateTable(ctx context.Context, t *models.Table) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TableAvailable
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now

	query := `INSERT INTO tables (` + tableColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.RestaurantID, t.Name, t.Capacity, t.Location, string(t.Status),
		boolToInt(t.IsJoined), t.JoinedGroupID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", translateError(err))
	}

	return nil
}

// GetTable получает стол по ID
func (s *SQLiteStorage) GetTable(ctx context.Context, id string) (*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM tables WHERE id = ?`

	t, err := scanTable(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", translateError(err))
	}

	return t, nil
}

// ListTables получает столы по фильтру, упорядоченные по имени
func (s *SQLiteStorage) ListTables(ctx context.Context, filter models.TableFilter) ([]*models.Table, error) {
	var (
		where []string
		args  []any
	)
	if filter.RestaurantID != "" {
		where = append(where, "restaurant_id = ?")
		args = append(args, filter.RestaurantID)
	}
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.JoinedGroupID != "" {
		where = append(where, "joined_group_id = ?")
		args = append(args, filter.JoinedGroupID)
	}

	query := `SELECT ` + tableColumns + ` FROM tables`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []*models.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tables: %w", err)
	}

	return tables, nil
}

// UpdateTable частично обновляет стол и возвращает новое состояние
func (s *SQLiteStorage) UpdateTable(ctx context.Context, id string, patch models.TablePatch) (*models.Table, error) {
	var (
		set  []string
		args []any
	)
	if patch.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Capacity != nil {
		set = append(set, "capacity = ?")
		args = append(args, *patch.Capacity)
	}
	if patch.Location != nil {
		set = append(set, "location = ?")
		if *patch.Location == "" {
			args = append(args, nil)
		} else {
			args = append(args, *patch.Location)
		}
	}
	if patch.Status != nil {
		set = append(set, "status = ?")
		args = append(args, string(*patch.Status))
	}

	if len(set) == 0 {
		return s.GetTable(ctx, id)
	}

	set = append(set, "updated_at = ?")
	args = append(args, s.now(), id)

	query := `UPDATE tables SET ` + strings.Join(set, ", ") + ` WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update table: %w", translateError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("failed to update table: %w", storage.ErrNotFound)
	}

	return s.GetTable(ctx, id)
}

// DeleteTable удаляет стол
func (s *SQLiteStorage) DeleteTable(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tables WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete table: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to delete table: %w", storage.ErrNotFound)
	}

	return nil
}

// JoinTables объединяет столы в группу в одной транзакции.
// Каждая запись условная, как при бронировании слота: стол должен быть
// свободен и не состоять в другой группе.
func (s *SQLiteStorage) JoinTables(ctx context.Context, ids []string, groupID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin join transaction: %w", err)
	}
	defer tx.Rollback()

	if len(ids) == 0 {
		return fmt.Errorf("join without tables: %w", storage.ErrJoinConflict)
	}

	// Идентификатор группы уникален в пределах ресторана
	var taken int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tables
		WHERE joined_group_id = ?
		  AND restaurant_id = (SELECT restaurant_id FROM tables WHERE id = ?)`,
		groupID, ids[0]).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check group id: %w", err)
	}
	if taken > 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrJoinConflict)
	}

	now := s.now()
	query := `UPDATE tables SET is_joined = 1, joined_group_id = ?, updated_at = ?
			  WHERE id = ? AND is_joined = 0 AND status = 'available'`

	for _, id := range ids {
		result, err := tx.ExecContext(ctx, query, groupID, now, id)
		if err != nil {
			return fmt.Errorf("failed to join table %s: %w", id, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("table %s: %w", id, storage.ErrJoinConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit join: %w", err)
	}

	return nil
}

// UnjoinTables возвращает столы к индивидуальному состоянию
func (s *SQLiteStorage) UnjoinTables(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, s.now())
	for _, id := range ids {
		args = append(args, id)
	}

	query := `UPDATE tables SET is_joined = 0, joined_group_id = NULL, updated_at = ?
			  WHERE id IN (` + placeholders(len(ids)) + `)`

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to unjoin tables: %w", err)
	}

	return nil
}
