package tokens

import (
	"context"
	"time"
)

// Store хранит одноразовые значения с ограниченным временем жизни
type Store interface {
	// Put сохраняет значение по ключу на время ttl, перезаписывая прежнее
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Consume возвращает значение и удаляет ключ. ok=false, если ключа нет
	// или срок его жизни истек.
	Consume(ctx context.Context, key string) (value string, ok bool, err error)

	// SweepExpired удаляет истекшие записи и возвращает их количество
	SweepExpired(ctx context.Context) (int, error)
}
