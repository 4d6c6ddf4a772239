package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tracuu-benhly/lookup/internal/models"
)

// Compare issues query to every model concurrently and returns one row per
// model in the order given. Any single failure fails the whole comparison;
// partial rows are never returned.
func (s *SearchService) Compare(ctx context.Context, query string, searchModels []models.SearchModel) ([]models.ComparisonRow, error) {
	processed, err := prepareQuery(query)
	if err != nil {
		return nil, err
	}
	if len(searchModels) == 0 {
		searchModels = models.AllSearchModels()
	}

	start := time.Now()
	rows := make([]models.ComparisonRow, len(searchModels))

	g, gctx := errgroup.WithContext(ctx)
	for i, model := range searchModels {
		i, model := i, model
		g.Go(func() error {
			resp, err := s.searcher.Search(gctx, processed, model)
			if err != nil {
				return &models.SearchError{Model: model, Err: err}
			}
			rows[i] = models.NewComparisonRow(model, resp)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.WithError(err).WithField("query", processed).Error("Comparison search failed")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"query":    processed,
		"models":   len(rows),
		"duration": time.Since(start),
	}).Info("Comparison completed")

	return rows, nil
}
