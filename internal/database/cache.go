package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/tracuu-benhly/lookup/internal/models"
	"github.com/tracuu-benhly/lookup/internal/textutil"
	"github.com/tracuu-benhly/lookup/pkg/utils"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache implementation
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	SearchResultsKey = "search:results:%s:%s"
	SystemHealthKey  = "system:health"
)

// SearchKey is the cache key for one (model, query) pair. Queries that only
// differ in case, spacing or Unicode composition share a key.
func SearchKey(model models.SearchModel, query string) string {
	return fmt.Sprintf(SearchResultsKey, model, utils.MD5Hash(textutil.Fold(textutil.Normalize(query))))
}

// CacheSearchResponse caches the backend payload for a query and model
func (c *Cache) CacheSearchResponse(ctx context.Context, model models.SearchModel, query string, resp *models.SearchResponse, expiration time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal search response: %w", err)
	}

	return c.client.Set(ctx, SearchKey(model, query), data, expiration).Err()
}

// GetCachedSearchResponse retrieves a cached backend payload
func (c *Cache) GetCachedSearchResponse(ctx context.Context, model models.SearchModel, query string) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := c.get(ctx, SearchKey(model, query), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InvalidateSearch removes cached payloads of a query for every model
func (c *Cache) InvalidateSearch(ctx context.Context, query string) error {
	keys := make([]string, 0, len(models.AllSearchModels()))
	for _, m := range models.AllSearchModels() {
		keys = append(keys, SearchKey(m, query))
	}
	return c.client.Del(ctx, keys...).Err()
}

// CacheSystemHealth caches a health report
func (c *Cache) CacheSystemHealth(ctx context.Context, health interface{}, expiration time.Duration) error {
	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("failed to marshal system health: %w", err)
	}

	return c.client.Set(ctx, SystemHealthKey, data, expiration).Err()
}

// GetCachedSystemHealth decodes the cached health report into out
func (c *Cache) GetCachedSystemHealth(ctx context.Context, out interface{}) error {
	return c.get(ctx, SystemHealthKey, out)
}

func (c *Cache) get(ctx context.Context, key string, out interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Dropping undecodable cache entry")
		_ = c.client.Del(ctx, key).Err()
		return ErrCacheMiss
	}
	return nil
}

// GetCacheStats reports the Redis keyspace counters
func (c *Cache) GetCacheStats(ctx context.Context) (map[string]string, error) {
	info, err := c.client.Info(ctx, "stats").Result()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"keyspace_hits":   extractStat(info, "keyspace_hits"),
		"keyspace_misses": extractStat(info, "keyspace_misses"),
	}, nil
}

func extractStat(info, key string) string {
	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, key+":") {
			return strings.TrimPrefix(line, key+":")
		}
	}
	return "0"
}
