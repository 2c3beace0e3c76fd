package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"gulfsolar/backend/services/calculator-service/internal/models"
)

const settingsKey = "calculator:settings:current"

// ErrCacheMiss is returned when the settings are not cached.
var ErrCacheMiss = errors.New("settings cache miss")

// SettingsCache keeps the current settings row in redis.
type SettingsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewSettingsCache returns redis-backed cache.
func NewSettingsCache(client redis.Cmdable, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SettingsCache{client: client, ttl: ttl}
}

// Get returns cached settings or ErrCacheMiss.
func (c *SettingsCache) Get(ctx context.Context) (*models.StoredSettings, error) {
	result, err := c.client.Get(ctx, settingsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	var stored models.StoredSettings
	if err := json.Unmarshal(result, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Set caches settings.
func (c *SettingsCache) Set(ctx context.Context, stored *models.StoredSettings) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, settingsKey, data, c.ttl).Err()
}

// Invalidate removes cached settings.
func (c *SettingsCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, settingsKey).Err()
}
