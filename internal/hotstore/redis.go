package hotstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only when the fencing token still owns it,
// in one round trip so a lease expiry between GET and DEL cannot unlock the
// next holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisStore implements Store on a Redis instance.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
	logger  *zap.Logger
}

// RedisConfig holds Redis hot-store configuration.
type RedisConfig struct {
	URL     string        // redis:// connection URL
	Timeout time.Duration // per-operation deadline
	Logger  *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	cfg.Logger.Info("redis-hotstore-connected", zap.String("addr", opts.Addr))

	return &RedisStore{
		client:  client,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

// bound applies the per-operation deadline unless the caller set a tighter one.
func (r *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// SaveSession writes the session blob with the given TTL.
func (r *RedisStore) SaveSession(ctx context.Context, id string, raw []byte, ttl time.Duration) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	err := r.client.Set(ctx, sessionKey(id), raw, ttl).Err()
	if err != nil {
		opsTotal.WithLabelValues("save_session", "error").Inc()
		return fmt.Errorf("set session %s: %w", id, err)
	}

	opsTotal.WithLabelValues("save_session", "ok").Inc()

	return nil
}

// LoadSession returns the session blob, or ErrNotFound.
func (r *RedisStore) LoadSession(ctx context.Context, id string) ([]byte, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		opsTotal.WithLabelValues("load_session", "miss").Inc()
		return nil, ErrNotFound
	}

	if err != nil {
		opsTotal.WithLabelValues("load_session", "error").Inc()
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	opsTotal.WithLabelValues("load_session", "ok").Inc()

	return raw, nil
}

// DeleteSession removes the session blob.
func (r *RedisStore) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	err := r.client.Del(ctx, sessionKey(id)).Err()
	if err != nil {
		return fmt.Errorf("del session %s: %w", id, err)
	}

	return nil
}

// AcquireLock takes the per-session lock via SET NX EX with a fresh token.
func (r *RedisStore) AcquireLock(ctx context.Context, id string, lease time.Duration) (string, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, lockKey(id), token, lease).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", id, err)
	}

	if !ok {
		lockContentionTotal.Inc()
		return "", ErrLockHeld
	}

	return token, nil
}

// ReleaseLock frees the lock if token still owns it.
func (r *RedisStore) ReleaseLock(ctx context.Context, id string, token string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	err := releaseScript.Run(ctx, r.client, []string{lockKey(id)}, token).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", id, err)
	}

	return nil
}

// InCooldown reports whether the cooldown key exists.
func (r *RedisStore) InCooldown(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	n, err := r.client.Exists(ctx, cooldownKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("check cooldown %s: %w", id, err)
	}

	return n > 0, nil
}

// SetCooldown arms the cooldown key.
func (r *RedisStore) SetCooldown(ctx context.Context, id string, d time.Duration) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	err := r.client.Set(ctx, cooldownKey(id), "1", d).Err()
	if err != nil {
		return fmt.Errorf("set cooldown %s: %w", id, err)
	}

	return nil
}

// IncrStartRate bumps the per-IP start counter, setting the window TTL when
// the counter is fresh.
func (r *RedisStore) IncrStartRate(ctx context.Context, ip string, window time.Duration) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	key := rateKey(ip)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr start rate %s: %w", ip, err)
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window).Err()
		if err != nil {
			return count, fmt.Errorf("expire start rate %s: %w", ip, err)
		}
	}

	return count, nil
}

// Ping verifies the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	r.logger.Info("closing-redis-hotstore")
	return r.client.Close()
}
