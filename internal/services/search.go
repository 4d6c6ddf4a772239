package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tracuu-benhly/lookup/internal/models"
	"github.com/tracuu-benhly/lookup/internal/ranking"
	"github.com/tracuu-benhly/lookup/internal/textutil"
)

type SearchService struct {
	searcher ranking.Searcher
	history  models.HistoryRepository
	logger   *logrus.Logger
}

// NewSearchService wires the ranking backend and the history store. history
// may be nil, in which case submitted queries are not recorded.
func NewSearchService(
	searcher ranking.Searcher,
	history models.HistoryRepository,
	logger *logrus.Logger,
) *SearchService {
	return &SearchService{
		searcher: searcher,
		history:  history,
		logger:   logger,
	}
}

// Search runs query against a single model. Backend failures come back as
// *models.SearchError so callers can show one generic message.
func (s *SearchService) Search(ctx context.Context, query string, model models.SearchModel) (*models.SearchResponse, error) {
	processed, err := prepareQuery(query)
	if err != nil {
		return nil, err
	}
	if _, err := models.ParseSearchModel(string(model)); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"query": processed,
		"model": model,
	}).Debug("Starting search")

	resp, err := s.searcher.Search(ctx, processed, model)
	if err != nil {
		s.logger.WithError(err).WithField("model", model).Error("Ranking search failed")
		return nil, &models.SearchError{Model: model, Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"model":   model,
		"results": resp.NumberOfResults,
		"took_ms": models.FormatElapsed(resp.QueryTime),
	}).Info("Search completed")

	return resp, nil
}

// Record appends query to the search history. Callers treat a failure as
// non-fatal; the error is returned only so it can be logged upstream.
func (s *SearchService) Record(ctx context.Context, query string) (*models.HistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	processed, err := prepareQuery(query)
	if err != nil {
		return nil, err
	}

	entry, err := s.history.Create(ctx, processed)
	if err != nil {
		s.logger.WithError(err).WithField("query", processed).Warn("Failed to record search history")
		return nil, &models.CollaboratorError{Source: "history", Err: err}
	}
	return entry, nil
}

func prepareQuery(query string) (string, error) {
	processed := textutil.Normalize(query)
	if processed == "" {
		return "", models.ErrEmptyQuery
	}
	if len([]rune(processed)) > maxQueryLength {
		return "", &models.ValidationError{Field: "query", Reason: fmt.Sprintf("query longer than %d characters", maxQueryLength)}
	}
	return processed, nil
}

const maxQueryLength = 500
