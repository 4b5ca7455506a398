package app

import (
	"fmt"

	"github.com/leasingborsen/listing-reconciler/internal/clients/redis"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

type Clients struct {
	// ListingLock is nil unless REDIS_ADDR is set.
	ListingLock *redis.ListingLock
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients
	if cfg.RedisAddr != "" {
		lock, err := redis.NewListingLock(log, redis.ListingLockConfig{
			Addr: cfg.RedisAddr,
			TTL:  cfg.RedisLockTTL,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis listing lock: %w", err)
		}
		out.ListingLock = lock
	}
	return out, nil
}

func (c Clients) Close() {
	if c.ListingLock != nil {
		_ = c.ListingLock.Close()
	}
}
