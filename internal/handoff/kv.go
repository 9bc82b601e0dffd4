package handoff

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by a [KV] for a missing or expired key.
var ErrKeyNotFound = errors.New("handoff: key not found")

// KV is the ephemeral key/value collaborator backing the store.
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
}

// GetDeleter is implemented by backends that can read and delete a key atomically.
type GetDeleter interface {
	GetDel(ctx context.Context, key string) ([]byte, error)
}
