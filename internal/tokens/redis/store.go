package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/region23/tablebook/internal/tokens"
)

const defaultPrefix = "tablebook:token:"

// Store реализует tokens.Store поверх Redis. Истечение срока жизни
// обеспечивает сам Redis, поэтому SweepExpired ничего не делает.
type Store struct {
	client *goredis.Client
	prefix string
}

var _ tokens.Store = (*Store)(nil)

// NewStore создает хранилище токенов на переданном клиенте
func NewStore(client *goredis.Client) *Store {
	return &Store{client: client, prefix: defaultPrefix}
}

// NewClient создает клиента Redis из URL вида redis://host:port/db
func NewClient(url string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return goredis.NewClient(opt), nil
}

// Put сохраняет значение с TTL
func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to put token: %w", err)
	}
	return nil
}

// Consume атомарно читает и удаляет ключ
func (s *Store) Consume(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.GetDel(ctx, s.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to consume token: %w", err)
	}
	return value, true, nil
}

// SweepExpired ничего не делает: ключи истекают на стороне Redis
func (s *Store) SweepExpired(context.Context) (int, error) {
	return 0, nil
}

// Ping проверяет соединение с Redis
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
