package handoff

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value      []byte
	expiration time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !now.Before(e.expiration)
}

// MemoryKV is an in-process [KV] with per-key expiry.
//
// It only serves single-instance deployments: sessions parked in one process are invisible to any other.
type MemoryKV struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryKV creates an empty store. A positive cleanupInterval starts a sweeper that evicts expired keys.
func NewMemoryKV(cleanupInterval time.Duration) *MemoryKV {
	m := &MemoryKV{
		items: make(map[string]memoryEntry),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.cleanupLoop(cleanupInterval)
	}
	return m
}

func (m *MemoryKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memoryEntry{value: append([]byte(nil), value...), expiration: m.now().Add(ttl)}
	return nil
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(key)
}

func (m *MemoryKV) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// GetDel reads and removes key under one lock, so only one caller ever receives the value.
func (m *MemoryKV) GetDel(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, err := m.lookup(key)
	delete(m.items, key)
	return value, err
}

// Len returns the number of stored keys, expired ones included until swept.
func (m *MemoryKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops the cleanup goroutine.
func (m *MemoryKV) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

// lookup must be called with mu held. Expired entries are evicted on read.
func (m *MemoryKV) lookup(key string) ([]byte, error) {
	entry, ok := m.items[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if entry.expired(m.now()) {
		delete(m.items, key)
		return nil, ErrKeyNotFound
	}
	return entry.value, nil
}

func (m *MemoryKV) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *MemoryKV) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, entry := range m.items {
		if entry.expired(now) {
			delete(m.items, key)
		}
	}
}
