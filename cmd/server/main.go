package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/tracuu-benhly/lookup/internal/api/handlers"
	"github.com/tracuu-benhly/lookup/internal/app"
	"github.com/tracuu-benhly/lookup/internal/config"
	"github.com/tracuu-benhly/lookup/internal/middleware"
	"github.com/tracuu-benhly/lookup/pkg/utils"
)

const serviceName = "tracuu-benhly-lookup"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	utils.InitLoggerWithLevel(cfg.LogLevel)
	logger := utils.GetLogger()

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	a, err := app.Open(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to start")
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := a.HealthChecker()
	go checker.PeriodicHealthCheck(ctx, 30*time.Second)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit)
	go limiter.Cleanup(time.Minute, ctx.Done())

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.SecurityHeaders(),
		middleware.AccessLog(logger),
		limiter.RateLimit(),
	)

	search := handlers.NewSearchHandler(a.Suggest, a.Search, a.Repos.History, a.Ranking, handlers.Config{
		DefaultModel:  cfg.Ranking.DefaultModel,
		CompareModels: cfg.Session.CompareModels,
		Timeout:       cfg.Ranking.Timeout,
	}, logger)
	handlers.RegisterRoutes(router, search, handlers.NewHealthHandler(checker, serviceName))

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
