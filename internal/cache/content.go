// Package cache provides a short-TTL Redis cache for rendered widget payloads.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relnotes/widget-tracker/internal/logger"
)

// DefaultTTL is the default lifetime of a cached widget payload.
const DefaultTTL = 60 * time.Second

// keyPrefix namespaces widget payload keys in Redis.
const keyPrefix = "widget:posts:"

// Content caches the serialized widget posts response per team and domain.
// A nil client disables caching; every lookup is then a miss.
type Content struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

// NewContent creates a Content cache. Pass a nil client to disable caching.
func NewContent(client *redis.Client, ttl time.Duration, log logger.Logger) *Content {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Content{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Enabled reports whether a Redis client is configured.
func (c *Content) Enabled() bool {
	return c.client != nil
}

// Ping verifies Redis connectivity for health checks.
func (c *Content) Ping() error {
	if c.client == nil {
		return errors.New("cache disabled")
	}
	return c.client.Ping(context.Background()).Err()
}

// Get returns the cached payload for a team/domain pair, if present.
// Cache failures degrade to a miss; the caller falls back to the store.
func (c *Content) Get(ctx context.Context, teamID, host string) ([]byte, bool) {
	if c.client == nil {
		return nil, false
	}

	payload, err := c.client.Get(ctx, key(teamID, host)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debug("Cache read failed",
				logger.String("team_id", teamID),
				logger.Error(err),
			)
		}
		return nil, false
	}
	return payload, true
}

// Set stores the payload for a team/domain pair. Failures are logged and
// ignored; the cache is best effort.
func (c *Content) Set(ctx context.Context, teamID, host string, payload []byte) {
	if c.client == nil {
		return
	}

	if err := c.client.Set(ctx, key(teamID, host), payload, c.ttl).Err(); err != nil {
		c.log.Debug("Cache write failed",
			logger.String("team_id", teamID),
			logger.Error(err),
		)
	}
}

func key(teamID, host string) string {
	return keyPrefix + teamID + ":" + host
}
