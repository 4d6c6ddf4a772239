// Package app opens the storage, ranking client and services shared by the
// server and the interactive lookup command.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tracuu-benhly/lookup/internal/config"
	"github.com/tracuu-benhly/lookup/internal/database"
	"github.com/tracuu-benhly/lookup/internal/health"
	"github.com/tracuu-benhly/lookup/internal/migration"
	"github.com/tracuu-benhly/lookup/internal/ranking"
	"github.com/tracuu-benhly/lookup/internal/repository"
	"github.com/tracuu-benhly/lookup/internal/services"
	"github.com/tracuu-benhly/lookup/internal/suggest"
)

type App struct {
	Config  *config.Config
	DB      *database.Manager
	Repos   *repository.RepositoryManager
	Ranking *ranking.Client
	Search  *services.SearchService
	Suggest *suggest.Service
	Cache   *database.Cache
	logger  *logrus.Logger
}

// Open connects to PostgreSQL (and Redis when configured), applies
// migrations and builds the services. Callers must Close the result.
func Open(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	manager, err := database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    cfg.LogLevel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	if err := migration.NewRunner(manager, manager.DB, logger).RunMigrations(cfg.Migrations.Path); err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &App{
		Config: cfg,
		DB:     manager,
		Repos:  repository.NewRepositoryManager(manager.DB),
		logger: logger,
	}

	a.Ranking = ranking.NewClient(cfg.Ranking.Endpoint, cfg.Ranking.Timeout, ranking.RetryConfig{
		MaxRetries: cfg.Ranking.MaxRetries,
		BaseDelay:  cfg.Ranking.RetryDelay,
		MaxDelay:   ranking.DefaultRetryConfig().MaxDelay,
	}, logger)

	var searcher ranking.Searcher = a.Ranking
	if manager.Redis != nil {
		a.Cache = database.NewCache(manager.Redis, logger)
		if cfg.Ranking.CacheTTL > 0 {
			searcher = ranking.NewCachedSearcher(a.Ranking, a.Cache, cfg.Ranking.CacheTTL, logger)
		}
	}

	a.Search = services.NewSearchService(searcher, a.Repos.History, logger)
	a.Suggest = suggest.NewService(a.Repos.History, a.Repos.Suggestion, suggest.Limits{
		History:     cfg.Suggest.HistoryLimit,
		Suggestions: cfg.Suggest.SuggestionLimit,
	}, logger)

	return a, nil
}

// HealthChecker probes every dependency the app opened.
func (a *App) HealthChecker() *health.Checker {
	probes := []health.Probe{
		{Name: "postgresql", Check: a.DB.PingDatabase},
		{Name: "ranking", Check: a.Ranking.Ping},
	}
	var cache health.Cache
	if a.Cache != nil {
		probes = append(probes, health.Probe{Name: "redis", Check: a.checkRedis})
		cache = a.Cache
	}
	return health.NewChecker(probes, cache, a.logger)
}

func (a *App) checkRedis(ctx context.Context) error {
	if err := a.DB.PingRedis(ctx); err != nil {
		return err
	}
	if stats, err := a.Cache.GetCacheStats(ctx); err == nil {
		a.logger.WithFields(logrus.Fields{
			"keyspace_hits":   stats["keyspace_hits"],
			"keyspace_misses": stats["keyspace_misses"],
		}).Debug("Redis cache stats")
	}
	return nil
}

func (a *App) Close() error {
	a.logger.Info("Closing database connections")
	return a.DB.Close()
}
