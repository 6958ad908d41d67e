package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CacheService caches upstream provider responses between pipeline runs so
// slow-moving data (team directory, season game logs) is not re-fetched on
// every invocation. The pipeline works fine without it.
type CacheService struct {
	client *redis.Client
	logger *logrus.Logger
	ctx    context.Context
}

var errCacheMiss = errors.New("cache miss")

// NewCacheService creates a Redis-backed response cache.
func NewCacheService(redisClient *redis.Client, logger *logrus.Logger) *CacheService {
	return &CacheService{
		client: redisClient,
		logger: logger,
		ctx:    context.Background(),
	}
}

func (c *CacheService) buildCacheKey(elements ...string) string {
	return fmt.Sprintf("nfl-insights:%s", strings.Join(elements, ":"))
}

// Set stores a value in cache with TTL
func (c *CacheService) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	if err := c.client.Set(c.ctx, c.buildCacheKey(key), data, ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Failed to set cache value")
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"key": key,
		"ttl": ttl.String(),
	}).Debug("Cached value successfully")

	return nil
}

// Get retrieves a value from cache
func (c *CacheService) Get(key string, dest interface{}) error {
	data, err := c.client.Get(c.ctx, c.buildCacheKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return errCacheMiss
		}
		c.logger.WithError(err).WithField("key", key).Error("Failed to get cache value")
		return err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Failed to unmarshal cache value")
		return err
	}

	c.logger.WithField("key", key).Debug("Cache hit")
	return nil
}

// IsHealthy reports whether Redis is reachable.
func (c *CacheService) IsHealthy() bool {
	return c.client.Ping(c.ctx).Err() == nil
}
