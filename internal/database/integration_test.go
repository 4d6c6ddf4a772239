//go:build integration

package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracuu-benhly/lookup/internal/models"
)

func TestIntegration_CacheRoundTrip(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL required for integration tests")
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	cache := NewCache(client, logrus.New())
	ctx := context.Background()
	query := "tiểu đường " + time.Now().Format(time.RFC3339Nano)

	_, err = cache.GetCachedSearchResponse(ctx, models.ModelBM25, query)
	assert.ErrorIs(t, err, ErrCacheMiss)

	resp := &models.SearchResponse{
		Results:         []models.SearchResult{{ID: "1", Title: "Tiểu đường type 2"}},
		NumberOfResults: 1,
		QueryTime:       4.2,
	}
	require.NoError(t, cache.CacheSearchResponse(ctx, models.ModelBM25, query, resp, time.Minute))

	got, err := cache.GetCachedSearchResponse(ctx, models.ModelBM25, query)
	require.NoError(t, err)
	assert.Equal(t, resp, got)

	require.NoError(t, cache.InvalidateSearch(ctx, query))
	_, err = cache.GetCachedSearchResponse(ctx, models.ModelBM25, query)
	assert.ErrorIs(t, err, ErrCacheMiss)
}
