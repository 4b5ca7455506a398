package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

var ErrLockClosed = errors.New("listing lock client closed")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ListingLock is a cross-process per-listing lock (SET NX PX + token release).
type ListingLock struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

type ListingLockConfig struct {
	Addr   string
	Prefix string
	TTL    time.Duration
	Poll   time.Duration
}

func NewListingLock(log *logger.Logger, cfg ListingLockConfig) (*ListingLock, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewListingLockWithClient(log, rdb, cfg), nil
}

func NewListingLockWithClient(log *logger.Logger, rdb goredis.UniversalClient, cfg ListingLockConfig) *ListingLock {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "reconciler:lock:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	poll := cfg.Poll
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return &ListingLock{
		log:    log.With("client", "RedisListingLock"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		poll:   poll,
	}
}

// Lock polls until the key is free or ctx ends. The TTL bounds how long a crashed
// holder can block others; a change must finish inside it.
func (l *ListingLock) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.rdb == nil {
		return nil, ErrLockClosed
	}
	full := l.prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", full, err)
		}
		if ok {
			return func() { l.release(full, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *ListingLock) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int()
	if err != nil {
		l.log.Warn("listing lock release failed", "key", key, "error", err)
		return
	}
	if n == 0 {
		l.log.Warn("listing lock expired before release", "key", key)
	}
}

func (l *ListingLock) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
