// Package suggest merges search history and the curated catalog into the
// candidate list shown under the search box.
package suggest

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tracuu-benhly/lookup/internal/models"
	"github.com/tracuu-benhly/lookup/internal/textutil"
)

const (
	DefaultHistoryLimit    = 5
	DefaultSuggestionLimit = 10
)

type Limits struct {
	History     int
	Suggestions int
}

func DefaultLimits() Limits {
	return Limits{History: DefaultHistoryLimit, Suggestions: DefaultSuggestionLimit}
}

type Service struct {
	history models.HistoryRepository
	catalog models.SuggestionRepository
	limits  Limits
	logger  *logrus.Logger
}

func NewService(history models.HistoryRepository, catalog models.SuggestionRepository, limits Limits, logger *logrus.Logger) *Service {
	if limits.History <= 0 {
		limits.History = DefaultHistoryLimit
	}
	if limits.Suggestions <= 0 {
		limits.Suggestions = DefaultSuggestionLimit
	}
	return &Service{
		history: history,
		catalog: catalog,
		limits:  limits,
		logger:  logger,
	}
}

// Lookup returns catalog matches (ascending) followed by history matches
// (newest first) for prefix. An empty prefix returns the newest history and
// the first catalog entries unfiltered. Duplicates across the two segments
// are kept. Any store failure yields an empty list; the error is only logged.
func (s *Service) Lookup(ctx context.Context, prefix string) models.CandidateList {
	prefix = textutil.Normalize(prefix)

	var (
		history     []models.HistoryEntry
		suggestions []models.Suggestion
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.history.List(gctx, prefix, s.limits.History)
		if err != nil {
			return &models.CollaboratorError{Source: "history", Err: err}
		}
		history = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.catalog.List(gctx, prefix, s.limits.Suggestions)
		if err != nil {
			return &models.CollaboratorError{Source: "suggestion", Err: err}
		}
		suggestions = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.WithError(err).WithField("prefix", prefix).Warn("Suggestion lookup failed")
		return models.EmptyCandidates()
	}

	return merge(prefix, suggestions, history, s.limits)
}

// merge enforces the caps and the prefix contract regardless of what the
// stores returned.
func merge(prefix string, suggestions []models.Suggestion, history []models.HistoryEntry, limits Limits) models.CandidateList {
	out := models.EmptyCandidates()
	for _, sg := range suggestions {
		if len(out.Suggestions) == limits.Suggestions {
			break
		}
		if textutil.HasPrefixFold(sg.Text, prefix) {
			out.Suggestions = append(out.Suggestions, sg)
		}
	}
	for _, h := range history {
		if len(out.History) == limits.History {
			break
		}
		if textutil.HasPrefixFold(h.Query, prefix) {
			out.History = append(out.History, h)
		}
	}
	return out
}
