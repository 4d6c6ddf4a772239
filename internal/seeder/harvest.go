package seeder

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/debug"
	"github.com/sirupsen/logrus"
)

type HarvestConfig struct {
	// Selector picks the elements whose text becomes a catalog entry.
	Selector    string
	Parallelism int
	Delay       time.Duration
	Timeout     time.Duration
	Verbose     bool
}

func DefaultHarvestConfig() HarvestConfig {
	return HarvestConfig{
		Selector:    "a",
		Parallelism: 2,
		Delay:       2 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// Harvester scrapes disease names from index pages.
type Harvester struct {
	config    HarvestConfig
	processor *CatalogProcessor
	logger    *logrus.Logger
}

func NewHarvester(config HarvestConfig, processor *CatalogProcessor, logger *logrus.Logger) *Harvester {
	if config.Selector == "" {
		config.Selector = "a"
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}
	return &Harvester{config: config, processor: processor, logger: logger}
}

// Harvest visits every page and returns the cleaned, deduplicated titles
// in the order they were first seen.
func (h *Harvester) Harvest(pages []string) ([]string, error) {
	var (
		mu   sync.Mutex
		raw  []string
		errs []error
	)

	c := colly.NewCollector(
		colly.UserAgent("TraCuuBenhLy-Seeder/1.0"),
		colly.Async(true),
	)
	if h.config.Verbose {
		c.SetDebugger(&debug.LogDebugger{})
	}

	for _, page := range pages {
		u, err := url.Parse(page)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid source url %q", page)
		}
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  u.Hostname() + "*",
			Parallelism: h.config.Parallelism,
			Delay:       h.config.Delay,
		}); err != nil {
			return nil, fmt.Errorf("failed to set limit for %s: %w", u.Host, err)
		}
	}

	if h.config.Timeout > 0 {
		c.SetRequestTimeout(h.config.Timeout)
	}

	c.OnHTML(h.config.Selector, func(e *colly.HTMLElement) {
		mu.Lock()
		raw = append(raw, e.Text)
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		h.logger.WithFields(logrus.Fields{
			"url":    r.Request.URL.String(),
			"status": r.StatusCode,
		}).WithError(err).Warn("Failed to fetch source page")
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", r.Request.URL, err))
		mu.Unlock()
	})

	for _, page := range pages {
		if err := c.Visit(page); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", page, err))
			mu.Unlock()
		}
	}
	c.Wait()

	if len(errs) == len(pages) && len(pages) > 0 {
		return nil, fmt.Errorf("all %d source pages failed: %w", len(pages), errs[0])
	}

	titles := h.processor.Process(raw)
	h.logger.WithFields(logrus.Fields{
		"pages":    len(pages),
		"elements": len(raw),
		"titles":   len(titles),
		"failed":   len(errs),
	}).Info("Harvest finished")
	return titles, nil
}
