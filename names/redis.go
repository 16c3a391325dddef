package names

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "member:name:"
	redisTTL       = 30 * 24 * time.Hour
)

// Redis is a Directory shared across restarts, so members who left before a
// restart still resolve when their session finishes.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to addr and verifies the connection with a ping.
func NewRedis(addr, password string, db int) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

// Remember stores name for id with a sliding TTL.
func (r *Redis) Remember(ctx context.Context, id, name string) {
	if id == "" || name == "" {
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+id, name, redisTTL).Err(); err != nil {
		slog.Warn("member name cache write failed", slog.String("component", "names"), slog.String("id", id), slog.Any("err", err))
	}
}

// DisplayName returns the cached name for id.
func (r *Redis) DisplayName(ctx context.Context, id string) (string, bool) {
	n, err := r.client.Get(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("member name cache read failed", slog.String("component", "names"), slog.String("id", id), slog.Any("err", err))
		}
		return "", false
	}
	return n, true
}

// Ping reports whether redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
