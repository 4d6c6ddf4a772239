package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tracuu-benhly/lookup/internal/models"
)

const maxLoggedBody = 500

type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	logger     *logrus.Logger
}

// NewClient builds a client for the ranking backend rooted at baseURL.
// Each call is independent; the client keeps no per-session state.
func NewClient(baseURL string, timeout time.Duration, retry RetryConfig, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retry:  retry,
		logger: logger,
	}
}

// Search runs GET /search?query=..&model_type=.. with retries on transient failures.
func (c *Client) Search(ctx context.Context, query string, model models.SearchModel) (*models.SearchResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("model_type", string(model))

	var response models.SearchResponse
	err := c.retryOperation(ctx, func() error {
		response = models.SearchResponse{}
		return c.makeRequest(ctx, http.MethodGet, "/search", params, &response)
	})
	if err != nil {
		return nil, err
	}
	if response.Results == nil {
		response.Results = []models.SearchResult{}
	}
	return &response, nil
}

// Disease fetches the article behind a search result.
func (c *Client) Disease(ctx context.Context, id string) (*models.DiseaseDetail, error) {
	params := url.Values{}
	params.Set("id", id)

	var detail models.DiseaseDetail
	err := c.makeRequest(ctx, http.MethodGet, "/disease", params, &detail)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if detail.Title == "" || detail.Content == "" {
		return nil, ErrNotFound
	}
	return &detail, nil
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, params url.Values, result interface{}) error {
	target := c.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    target,
	}).Debug("Making ranking API request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"status_code":   resp.StatusCode,
		"method":        method,
		"url":           target,
		"response_size": len(responseBody),
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Debug("Ranking API response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(responseBody)
		if len(body) > maxLoggedBody {
			body = body[:maxLoggedBody]
		}
		return &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: body}
	}

	if result != nil && len(responseBody) > 0 {
		if err := json.Unmarshal(responseBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
