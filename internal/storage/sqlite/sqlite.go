package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/region23/tablebook/internal/storage"

	_ "modernc.org/sqlite"
)

// SQLiteStorage реализует интерфейс Storage для SQLite
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// New создает новое подключение к SQLite базе данных
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite поддерживает только одно write-подключение; для :memory:
	// это еще и единственный способ видеть одну и ту же базу
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := newWithDB(db)

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

func newWithDB(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// migrate выполняет миграции базы данных
func (s *SQLiteStorage) migrate() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if _, err := s.db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS restaurants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			id TEXT PRIMARY KEY,
			restaurant_id TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			telegram_chat_id INTEGER UNIQUE,
			telegram_username TEXT,
			language TEXT NOT NULL DEFAULT 'en',
			created_at DATETIME NOT NULL,
			FOREIGN KEY(restaurant_id) REFERENCES restaurants(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS tables (
			id TEXT PRIMARY KEY,
			restaurant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			capacity INTEGER NOT NULL CHECK (capacity > 0),
			location TEXT,
			status TEXT NOT NULL DEFAULT 'available',
			is_joined INTEGER NOT NULL DEFAULT 0,
			joined_group_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(restaurant_id, name),
			CHECK ((is_joined = 1) = (joined_group_id IS NOT NULL)),
			FOREIGN KEY(restaurant_id) REFERENCES restaurants(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			restaurant_id TEXT NOT NULL,
			table_id TEXT,
			customer_id TEXT NOT NULL DEFAULT '',
			client_name TEXT NOT NULL,
			client_contact TEXT NOT NULL,
			party_size INTEGER NOT NULL CHECK (party_size > 0),
			reservation_date TEXT NOT NULL,
			reservation_time TEXT NOT NULL,
			starts_at INTEGER NOT NULL,
			ends_at INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			reminder_sent INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(table_id) REFERENCES tables(id) ON DELETE SET NULL
		)`,
		// Пересечение полуинтервалов [starts_at, ends_at) на том же столе или
		// на любом столе из его группы отклоняется на уровне хранилища
		`CREATE TRIGGER IF NOT EXISTS reservations_no_overlap
		BEFORE INSERT ON reservations
		WHEN NEW.table_id IS NOT NULL
		BEGIN
			SELECT RAISE(ABORT, 'reservation slot conflict')
			WHERE EXISTS (
				SELECT 1 FROM reservations r
				WHERE r.starts_at < NEW.ends_at
				  AND NEW.starts_at < r.ends_at
				  AND r.table_id IN (
					SELECT NEW.table_id
					UNION
					SELECT m.id FROM tables t
					JOIN tables m ON m.joined_group_id = t.joined_group_id
						AND m.restaurant_id = t.restaurant_id
					WHERE t.id = NEW.table_id AND t.joined_group_id IS NOT NULL
				  )
			);
		END`,
		`CREATE INDEX IF NOT EXISTS idx_tables_restaurant ON tables(restaurant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tables_group ON tables(joined_group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_table ON reservations(table_id, starts_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_pending ON reservations(status, reminder_sent)`,
		`CREATE INDEX IF NOT EXISTS idx_admins_restaurant ON admins(restaurant_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Close закрывает подключение к базе данных
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping проверяет подключение к базе данных
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

// translateError переводит ошибки драйвера в ошибки хранилища
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "reservation slot conflict"):
		return storage.ErrSlotConflict
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
	}
	return err
}

// placeholders возвращает строку "?, ?, ?" для n аргументов
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
