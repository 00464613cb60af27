package memory

import (
	"context"
	"sync"
	"time"

	"github.com/region23/tablebook/internal/tokens"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Store реализует tokens.Store в памяти процесса
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

var _ tokens.Store = (*Store)(nil)

// NewStore создает хранилище токенов в памяти
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock создает хранилище с подменяемыми часами
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Put сохраняет значение на время ttl
func (s *Store) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// Consume возвращает значение и удаляет ключ
func (s *Store) Consume(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, key)

	if !s.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

// SweepExpired удаляет истекшие записи
func (s *Store) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len возвращает количество записей, включая истекшие
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
