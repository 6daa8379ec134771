package hotstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// entry is a value with an expiry instant; zero expiry never lapses.
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements Store in process memory with the same TTL, lock and
// cooldown semantics as the Redis store. It serves tests, development, and
// single-node deployments where REDIS_URL is unset.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string]entry
	counts  map[string]*rateWindow
	logger  *zap.Logger
	nowFunc func() time.Time
}

type rateWindow struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryStore builds an empty in-memory hot store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	logger.Info("memory-hotstore-initialized")

	return &MemoryStore{
		data:    make(map[string]entry),
		counts:  make(map[string]*rateWindow),
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SetNow overrides the clock; tests use it to drive TTL expiry.
func (m *MemoryStore) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nowFunc = now
}

func (m *MemoryStore) get(key string) ([]byte, bool) {
	e, ok := m.data[key]
	if !ok {
		return nil, false
	}

	if e.expired(m.nowFunc()) {
		delete(m.data, key)
		return nil, false
	}

	return e.value, true
}

func (m *MemoryStore) set(key string, value []byte, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.nowFunc().Add(ttl)
	}

	m.data[key] = e
}

// SaveSession writes the session blob with the given TTL.
func (m *MemoryStore) SaveSession(_ context.Context, id string, raw []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob := make([]byte, len(raw))
	copy(blob, raw)
	m.set(sessionKey(id), blob, ttl)
	opsTotal.WithLabelValues("save_session", "ok").Inc()

	return nil
}

// LoadSession returns the session blob, or ErrNotFound.
func (m *MemoryStore) LoadSession(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.get(sessionKey(id))
	if !ok {
		opsTotal.WithLabelValues("load_session", "miss").Inc()
		return nil, ErrNotFound
	}

	opsTotal.WithLabelValues("load_session", "ok").Inc()

	return raw, nil
}

// DeleteSession removes the session blob.
func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, sessionKey(id))

	return nil
}

// AcquireLock takes the per-session lock if absent or lease-expired.
func (m *MemoryStore) AcquireLock(_ context.Context, id string, lease time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.get(lockKey(id)); held {
		lockContentionTotal.Inc()
		return "", ErrLockHeld
	}

	token := uuid.NewString()
	m.set(lockKey(id), []byte(token), lease)

	return token, nil
}

// ReleaseLock frees the lock if token still owns it.
func (m *MemoryStore) ReleaseLock(_ context.Context, id string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, held := m.get(lockKey(id))
	if held && string(owner) == token {
		delete(m.data, lockKey(id))
	}

	return nil
}

// InCooldown reports whether the cooldown key exists.
func (m *MemoryStore) InCooldown(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.get(cooldownKey(id))

	return ok, nil
}

// SetCooldown arms the cooldown key.
func (m *MemoryStore) SetCooldown(_ context.Context, id string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(cooldownKey(id), []byte("1"), d)

	return nil
}

// IncrStartRate bumps the per-IP start counter within its window.
func (m *MemoryStore) IncrStartRate(_ context.Context, ip string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	key := rateKey(ip)

	w, ok := m.counts[key]
	if !ok || now.After(w.expiresAt) {
		w = &rateWindow{expiresAt: now.Add(window)}
		m.counts[key] = w
	}

	w.count++

	return w.count, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	m.logger.Info("closing-memory-hotstore")
	return nil
}
