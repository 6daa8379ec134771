// Package hotstore is the TTL-bound tier of session persistence: the live
// session blob, the per-session lock and cooldown, and the per-IP start-rate
// counter. Active play reads and writes this tier many times per session;
// history lives in the durable tier.
package hotstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session key is absent or expired.
var ErrNotFound = errors.New("hotstore: session not found")

// ErrLockHeld is returned when the per-session lock is owned by another
// request. Callers surface it as busy without blocking.
var ErrLockHeld = errors.New("hotstore: session lock held")

// Store is the hot-tier contract consumed by the negotiation service.
//
// Lock semantics: Acquire is a single write-if-absent with a lease and a
// unique fencing token; Release verifies the token so a slow holder whose
// lease expired cannot unlock the next owner.
type Store interface {
	// SaveSession writes the session blob with the given TTL, replacing any
	// previous snapshot.
	SaveSession(ctx context.Context, id string, raw []byte, ttl time.Duration) error

	// LoadSession returns the session blob, or ErrNotFound.
	LoadSession(ctx context.Context, id string) ([]byte, error)

	// DeleteSession removes the session blob. Deleting an absent key is not
	// an error.
	DeleteSession(ctx context.Context, id string) error

	// AcquireLock takes the per-session lock for the lease duration and
	// returns the fencing token, or ErrLockHeld.
	AcquireLock(ctx context.Context, id string, lease time.Duration) (string, error)

	// ReleaseLock frees the lock if token still owns it; foreign or stale
	// tokens are a silent no-op.
	ReleaseLock(ctx context.Context, id string, token string) error

	// InCooldown reports whether the session's cooldown key exists.
	InCooldown(ctx context.Context, id string) (bool, error)

	// SetCooldown arms the cooldown key for the given duration.
	SetCooldown(ctx context.Context, id string, d time.Duration) error

	// IncrStartRate bumps the per-IP start counter, arming a fresh counter
	// with the window TTL, and returns the new count.
	IncrStartRate(ctx context.Context, ip string, window time.Duration) (int64, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing connection.
	Close() error
}

// Key layout shared by implementations.
func sessionKey(id string) string  { return "session:" + id }
func lockKey(id string) string     { return "lock:session:" + id }
func cooldownKey(id string) string { return "cooldown:session:" + id }
func rateKey(ip string) string     { return "start_rate:" + ip }
