package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisMirror shares the lookup tier (handle->numeric-id mappings only)
// across cooperating processes in one deployment. Never used for the
// profile/relationship tiers: this tool makes no claim about
// cross-process write ordering for those, so mirroring them would only
// create false confidence in staleness-sensitive data.
type redisMirror struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func newRedisMirror(addr, password string, db int, ttl time.Duration, logger *slog.Logger) (*redisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &redisMirror{client: client, ttl: ttl, logger: logger}, nil
}

func (m *redisMirror) key(handle string) string {
	return "blockctl:lookup:v1:" + handle
}

func (m *redisMirror) get(ctx context.Context, handle string) (string, bool) {
	val, err := m.client.Get(ctx, m.key(handle)).Result()
	if err != nil {
		if err != redis.Nil {
			m.logger.Warn("redis mirror get failed", "handle", handle, "error", err)
		}
		return "", false
	}
	return val, true
}

func (m *redisMirror) set(ctx context.Context, handle, numericID string) {
	if err := m.client.Set(ctx, m.key(handle), numericID, m.ttl).Err(); err != nil {
		m.logger.Warn("redis mirror set failed", "handle", handle, "error", err)
	}
}

func (m *redisMirror) close() error {
	return m.client.Close()
}
