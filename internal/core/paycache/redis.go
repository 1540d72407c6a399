// Package paycache caches derived payment status so the heartbeat hot path
// does not hit Postgres on every poll. Entries live for a few seconds; a miss
// or an unreachable Redis simply falls through to the database.
package paycache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/novaops/nova-control/internal/models"
)

const statusTTL = 30 * time.Second

type Cache struct {
	client *redis.Client
	log    *logrus.Logger
}

// New connects to Redis at url. An empty url disables caching entirely and
// returns a nil *Cache, which is safe to call.
func New(ctx context.Context, url string, log *logrus.Logger) (*Cache, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{client: client, log: log}, nil
}

func key(profileID string) string {
	return "paystatus:" + profileID
}

func (c *Cache) Get(ctx context.Context, profileID string) (*models.PaymentStatus, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key(profileID)).Bytes()
	if err != nil {
		return nil, false
	}
	var st models.PaymentStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false
	}
	return &st, true
}

func (c *Cache) Set(ctx context.Context, profileID string, st *models.PaymentStatus) {
	if c == nil || st == nil {
		return
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(profileID), raw, statusTTL).Err(); err != nil {
		c.log.WithError(err).Warn("payment cache set failed")
	}
}

func (c *Cache) Invalidate(ctx context.Context, profileID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, key(profileID)).Err(); err != nil {
		c.log.WithError(err).Warn("payment cache invalidate failed")
	}
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
