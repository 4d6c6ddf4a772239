package ranking

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tracuu-benhly/lookup/internal/database"
	"github.com/tracuu-benhly/lookup/internal/models"
)

// ResponseCache stores backend payloads per (model, query).
type ResponseCache interface {
	GetCachedSearchResponse(ctx context.Context, model models.SearchModel, query string) (*models.SearchResponse, error)
	CacheSearchResponse(ctx context.Context, model models.SearchModel, query string, resp *models.SearchResponse, expiration time.Duration) error
}

// CachedSearcher serves repeated (query, model) pairs from the cache and
// falls through to the backend on a miss. Cache failures never fail a search.
type CachedSearcher struct {
	next   Searcher
	cache  ResponseCache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedSearcher(next Searcher, cache ResponseCache, ttl time.Duration, logger *logrus.Logger) *CachedSearcher {
	return &CachedSearcher{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *CachedSearcher) Search(ctx context.Context, query string, model models.SearchModel) (*models.SearchResponse, error) {
	cached, err := s.cache.GetCachedSearchResponse(ctx, model, query)
	if err == nil {
		s.logger.WithFields(logrus.Fields{"model": model, "query": query}).Debug("Search served from cache")
		return cached, nil
	}
	if !errors.Is(err, database.ErrCacheMiss) {
		s.logger.WithError(err).Warn("Search cache lookup failed")
	}

	resp, err := s.next.Search(ctx, query, model)
	if err != nil {
		return nil, err
	}

	if err := s.cache.CacheSearchResponse(ctx, model, query, resp, s.ttl); err != nil {
		s.logger.WithError(err).Warn("Failed to cache search results")
	}
	return resp, nil
}
