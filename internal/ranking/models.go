package ranking

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tracuu-benhly/lookup/internal/models"
)

// Searcher answers one query with one scoring model.
type Searcher interface {
	Search(ctx context.Context, query string, model models.SearchModel) (*models.SearchResponse, error)
}

// ErrNotFound is returned when the backend has no record for a detail id.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx answer from the ranking backend.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ranking API %s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
