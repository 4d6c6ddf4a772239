package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tracuu-benhly/lookup/internal/app"
	"github.com/tracuu-benhly/lookup/internal/config"
	"github.com/tracuu-benhly/lookup/internal/console"
	"github.com/tracuu-benhly/lookup/internal/models"
	"github.com/tracuu-benhly/lookup/internal/session"
	"github.com/tracuu-benhly/lookup/pkg/utils"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lookup",
		Short: "Interactive disease lookup",
		Long: `lookup runs a search session against the configured catalog and
ranking service. Type to get suggestions, then :submit to search.

Environment variables:
  DATABASE_URL           PostgreSQL connection string
  REDIS_URL              Redis connection string (optional)
  API_SERVICE_ENDPOINT   Ranking service base URL`,
		Version:      version,
		SilenceUsage: true,
		RunE:         runLookup,
	}

	rootCmd.Flags().Bool("json", false, "Print each state change as JSON")
	rootCmd.Flags().String("url", "", "Restore a session from a location such as /search?query=...&model=...")
	rootCmd.Flags().String("model", "", "Initial search model (bm25, word2vec, huggingface)")
	rootCmd.Flags().Bool("compare", false, "Start in comparison mode")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runLookup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Keep the log out of the interactive output unless asked for.
	level := cfg.LogLevel
	if level == "" || level == "info" {
		level = "warn"
	}
	utils.InitLoggerWithLevel(level)
	logger := utils.GetLogger()
	logger.SetOutput(os.Stderr)

	a, err := app.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := session.Options{
		Debounce:       cfg.Suggest.Debounce,
		DefaultModel:   cfg.Ranking.DefaultModel,
		CompareModels:  cfg.Session.CompareModels,
		ModelSelection: cfg.Session.ModelSelection,
		SyncURL:        cfg.Session.SyncURL,
		RequestTimeout: cfg.Ranking.Timeout,
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	restore, _ := cmd.Flags().GetString("url")
	model, _ := cmd.Flags().GetString("model")
	compare, _ := cmd.Flags().GetBool("compare")

	var s *session.Session
	if restore != "" {
		s, err = session.NewFromURL(restore, opts, a.Suggest, a.Search, a.Repos.History, logger)
		if err != nil {
			return fmt.Errorf("failed to restore session: %w", err)
		}
	} else {
		s = session.New(opts, a.Suggest, a.Search, a.Repos.History, logger)
	}
	defer s.Close()

	if model != "" {
		if err := s.SetModel(models.SearchModel(model)); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	c := console.New(s, out, asJSON)
	unsubscribe := s.Subscribe(c.Render)
	defer unsubscribe()

	// Comparison mode needs a query, so --compare only applies to a
	// restored session.
	if compare {
		if err := s.OnToggleComparisonMode(true); err != nil {
			return fmt.Errorf("--compare needs --url with a query: %w", err)
		}
	}

	if !asJSON {
		fmt.Fprintln(out, console.Help)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return c.Run(ctx, cmd.InOrStdin())
}
