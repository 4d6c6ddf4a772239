package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tracuu-benhly/lookup/internal/app"
	"github.com/tracuu-benhly/lookup/internal/config"
	"github.com/tracuu-benhly/lookup/internal/seeder"
	"github.com/tracuu-benhly/lookup/pkg/utils"
)

// Command line flags
var (
	dryRun     = flag.Bool("dry-run", false, "Print the catalog instead of inserting it")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	sources    = flag.String("source-url", "", "Comma separated index pages to harvest disease names from")
	selector   = flag.String("selector", "a", "CSS selector for disease names on the source pages")
	concurrent = flag.Int("concurrent", 2, "Number of concurrent requests per host")
	delay      = flag.Duration("delay", 2*time.Second, "Delay between requests")
	skipBase   = flag.Bool("skip-default", false, "Do not insert the built-in catalog")
)

func main() {
	flag.Parse()

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
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.Info("Starting disease catalog seeder...")

	var catalog []string
	if !*skipBase {
		catalog = append(catalog, seeder.DefaultCatalog...)
	}

	if pages := splitSources(*sources); len(pages) > 0 {
		hc := seeder.DefaultHarvestConfig()
		hc.Selector = *selector
		hc.Parallelism = *concurrent
		hc.Delay = *delay
		hc.Verbose = *verbose

		harvester := seeder.NewHarvester(hc, seeder.NewCatalogProcessor(), logger)

		titles, err := harvester.Harvest(pages)
		if err != nil {
			logger.WithError(err).Fatal("Harvest failed")
		}
		catalog = append(catalog, titles...)
	}

	catalog = seeder.NewCatalogProcessor().Process(catalog)

	if *dryRun {
		for _, title := range catalog {
			logger.WithField("title", title).Info("Would insert")
		}
		logger.WithField("total", len(catalog)).Info("Dry run finished")
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	a, err := app.Open(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	inserted, err := a.Repos.Suggestion.CreateMany(ctx, catalog)
	if err != nil {
		logger.WithError(err).Fatal("Failed to insert catalog")
	}

	logger.WithFields(logrus.Fields{
		"candidates": len(catalog),
		"inserted":   inserted,
	}).Info("Catalog seeding completed successfully!")
}

func splitSources(raw string) []string {
	var pages []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			pages = append(pages, p)
		}
	}
	return pages
}
