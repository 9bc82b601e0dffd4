// Package handoff parks the user's selection server-side across the Spotify authorization redirect.
//
// The redirect only round-trips a short opaque state value, so the selected albums and canonical piece are
// stored under a random handle and the handle alone travels through the consent page. Sessions are
// read-once: the callback consumes them, and anything unread expires after the configured TTL.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/shared"
	"github.com/google/uuid"
)

const (
	// DefaultTTL is how long an unread session survives.
	DefaultTTL = 15 * time.Minute
	keyPrefix  = "handoff:"
)

// Store issues handles for parked payloads.
type Store struct {
	kv      KV
	ttl     time.Duration
	backend string
	logger  *log.Logger
}

// NewStore wraps kv. A non-positive ttl uses [DefaultTTL].
func NewStore(kv KV, ttl time.Duration, logger *log.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	backend := "memory"
	if _, ok := kv.(*RedisKV); ok {
		backend = "redis"
	}
	return &Store{kv: kv, ttl: ttl, backend: backend, logger: shared.ComponentLogger(logger, "handoff")}
}

// Open builds a store from config. When Redis is not configured or does not answer at startup the
// store falls back to process memory with the same TTL semantics.
func Open(ctx context.Context, cfg shared.HandoffConfig, logger *log.Logger) *Store {
	if cfg.RedisAddr != "" {
		kv, err := DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			return NewStore(kv, cfg.TTL(), logger)
		}
		shared.ComponentLogger(logger, "handoff").Warn("redis unavailable, handoff sessions kept in memory (single instance only)", "addr", cfg.RedisAddr, "error", err)
	}
	return NewStore(NewMemoryKV(time.Minute), cfg.TTL(), logger)
}

// Backend names the active backend: "redis" or "memory".
func (s *Store) Backend() string {
	return s.backend
}

// TTL returns the session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Put parks payload and returns its handle.
func (s *Store) Put(ctx context.Context, payload models.HandoffPayload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("handoff: encode payload: %w", err)
	}

	handle := uuid.New().String()
	if err := s.kv.Set(ctx, keyPrefix+handle, data, s.ttl); err != nil {
		return "", fmt.Errorf("%w: handoff put: %v", shared.ErrServiceUnavailable, err)
	}

	s.logger.Debug("parked handoff session", "handle", handle, "albums", len(payload.Albums), "bytes", len(data))
	return handle, nil
}

// Get returns the payload without consuming it.
// Unknown and expired handles both yield [shared.ErrSessionExpired].
func (s *Store) Get(ctx context.Context, handle string) (models.HandoffPayload, error) {
	return s.read(ctx, handle, s.kv.Get)
}

// Consume returns the payload and deletes it. Of two concurrent consumers only one receives the payload;
// the other sees [shared.ErrSessionExpired].
func (s *Store) Consume(ctx context.Context, handle string) (models.HandoffPayload, error) {
	if gd, ok := s.kv.(GetDeleter); ok {
		return s.read(ctx, handle, gd.GetDel)
	}

	payload, err := s.Get(ctx, handle)
	if err != nil {
		return payload, err
	}
	if err := s.Del(ctx, handle); err != nil {
		s.logger.Warn("failed to delete consumed handoff session", "handle", handle, "error", err)
	}
	return payload, nil
}

// Del removes a session. Deleting an unknown handle is not an error.
func (s *Store) Del(ctx context.Context, handle string) error {
	if !validHandle(handle) {
		return nil
	}
	return s.kv.Del(ctx, keyPrefix+handle)
}

// Close releases the backend.
func (s *Store) Close() error {
	if c, ok := s.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) read(ctx context.Context, handle string, fetch func(context.Context, string) ([]byte, error)) (models.HandoffPayload, error) {
	var payload models.HandoffPayload
	if !validHandle(handle) {
		return payload, shared.ErrSessionExpired
	}

	data, err := fetch(ctx, keyPrefix+handle)
	if errors.Is(err, ErrKeyNotFound) {
		return payload, shared.ErrSessionExpired
	}
	if err != nil {
		return payload, fmt.Errorf("%w: handoff get: %v", shared.ErrServiceUnavailable, err)
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		s.logger.Error("corrupt handoff payload", "handle", handle, "error", err)
		return payload, shared.ErrSessionExpired
	}
	return payload, nil
}

func validHandle(handle string) bool {
	_, err := uuid.Parse(handle)
	return err == nil
}
