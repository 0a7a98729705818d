package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the attempt-tracking backend is unreachable.
var ErrUnavailable = errors.New("attempt window backend unavailable")

// Config holds sliding-window tuning parameters.
type Config struct {
	Window time.Duration
	// Prefix namespaces the Redis keys. Defaults to "fw".
	Prefix string
}

// Window tracks failed attempts per identifier over a sliding time window
// using Redis sorted sets.
type Window struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a sliding-window tracker backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Window {
	if cfg.Prefix == "" {
		cfg.Prefix = "fw"
	}
	return &Window{
		redis:  redisClient,
		config: cfg,
	}
}

func (w *Window) key(identifier string) string {
	return w.config.Prefix + ":" + identifier
}

// Record registers one failed attempt for identifier at now, drops entries
// that have slid out of the window, and returns the count of attempts still
// inside it (including this one).
func (w *Window) Record(ctx context.Context, identifier string, now time.Time) (int, error) {
	key := w.key(identifier)
	cutoff := now.Add(-w.config.Window).UnixNano()

	pipe := w.redis.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, w.config.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return int(card.Val()), nil
}

// Count returns the attempts currently inside the window without recording
// a new one.
func (w *Window) Count(ctx context.Context, identifier string, now time.Time) (int, error) {
	key := w.key(identifier)
	cutoff := strconv.FormatInt(now.Add(-w.config.Window).UnixNano(), 10)

	n, err := w.redis.ZCount(ctx, key, "("+cutoff, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return int(n), nil
}

// Reset clears the window for identifier. Called on successful login.
func (w *Window) Reset(ctx context.Context, identifier string) error {
	if err := w.redis.Del(ctx, w.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
