package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tracuu-benhly/lookup/internal/models"
	"github.com/tracuu-benhly/lookup/internal/ranking"
	"github.com/tracuu-benhly/lookup/pkg/utils"
)

type Suggester interface {
	Lookup(ctx context.Context, prefix string) models.CandidateList
}

type Searcher interface {
	Search(ctx context.Context, query string, model models.SearchModel) (*models.SearchResponse, error)
	Compare(ctx context.Context, query string, searchModels []models.SearchModel) ([]models.ComparisonRow, error)
	Record(ctx context.Context, query string) (*models.HistoryEntry, error)
}

type DiseaseFetcher interface {
	Disease(ctx context.Context, id string) (*models.DiseaseDetail, error)
}

type Config struct {
	DefaultModel  models.SearchModel
	CompareModels []models.SearchModel
	Timeout       time.Duration
}

type SearchHandler struct {
	suggester Suggester
	searcher  Searcher
	history   models.HistoryRepository
	diseases  DiseaseFetcher
	config    Config
	logger    *logrus.Logger
}

func NewSearchHandler(
	suggester Suggester,
	searcher Searcher,
	history models.HistoryRepository,
	diseases DiseaseFetcher,
	config Config,
	logger *logrus.Logger,
) *SearchHandler {
	if config.DefaultModel == "" {
		config.DefaultModel = models.ModelBM25
	}
	if len(config.CompareModels) == 0 {
		config.CompareModels = models.AllSearchModels()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &SearchHandler{
		suggester: suggester,
		searcher:  searcher,
		history:   history,
		diseases:  diseases,
		config:    config,
		logger:    logger,
	}
}

// HandleSearchSuggestions returns catalog and history candidates for q.
func (h *SearchHandler) HandleSearchSuggestions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Timeout)
	defer cancel()

	list := h.suggester.Lookup(ctx, c.Query("q"))
	utils.SuccessResponse(c, http.StatusOK, "Suggestions retrieved", list)
}

// HandleDeleteHistory deletes one history row by id.
func (h *SearchHandler) HandleDeleteHistory(c *gin.Context) {
	var req models.DeleteHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid ID", err)
		return
	}
	id, err := models.ParseHistoryID(req.ID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid ID", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Timeout)
	defer cancel()

	if err := h.history.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrHistoryNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "History entry not found", err)
			return
		}
		h.logger.WithError(err).WithField("id", id).Error("Failed to delete history entry")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to delete history entry", err)
		return
	}

	h.logger.WithField("id", id).Info("History entry deleted")
	utils.SuccessResponse(c, http.StatusOK, "History entry deleted", nil)
}

// HandleSearch records the query in history and answers with one model.
func (h *SearchHandler) HandleSearch(c *gin.Context) {
	startTime := time.Now()

	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	model := h.config.DefaultModel
	if strings.TrimSpace(req.Model) != "" {
		parsed, err := models.ParseSearchModel(req.Model)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Unknown search model", err)
			return
		}
		model = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Timeout)
	defer cancel()

	h.logger.WithFields(logrus.Fields{
		"query":      req.Query,
		"model":      model,
		"ip_address": c.ClientIP(),
	}).Info("Processing search request")

	entry, err := h.searcher.Record(ctx, req.Query)
	if err != nil {
		if models.IsValidation(err) {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid search request", err)
			return
		}
		h.logger.WithError(err).Warn("History was not recorded")
	}

	resp, err := h.searcher.Search(ctx, req.Query, model)
	if err != nil {
		h.writeSearchError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"results_count": resp.NumberOfResults,
		"response_time": time.Since(startTime).Milliseconds(),
	}).Info("Search completed successfully")

	utils.SuccessResponse(c, http.StatusOK, "Search completed", models.SearchAPIResponse{
		Query:   strings.TrimSpace(req.Query),
		Model:   model,
		History: entry,
		Result:  resp,
		Summary: resp.Summary(model),
	})
}

// HandleCompare runs query against every configured model.
func (h *SearchHandler) HandleCompare(c *gin.Context) {
	query := c.Query("query")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Timeout)
	defer cancel()

	rows, err := h.searcher.Compare(ctx, query, h.config.CompareModels)
	if err != nil {
		h.writeSearchError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Comparison completed", models.CompareAPIResponse{
		Query: strings.TrimSpace(query),
		Rows:  rows,
	})
}

// HandleDisease proxies the article behind a result id.
func (h *SearchHandler) HandleDisease(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid ID", nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Timeout)
	defer cancel()

	detail, err := h.diseases.Disease(ctx, id)
	if err != nil {
		if errors.Is(err, ranking.ErrNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Disease not found", nil)
			return
		}
		h.logger.WithError(err).WithField("id", id).Error("Failed to fetch disease detail")
		utils.ErrorResponse(c, http.StatusBadGateway, models.SearchFailedMessage, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Disease retrieved", detail)
}

func (h *SearchHandler) writeSearchError(c *gin.Context, err error) {
	if models.IsValidation(err) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid search request", err)
		return
	}
	h.logger.WithError(err).Error("Search failed")
	utils.ErrorResponse(c, http.StatusBadGateway, models.SearchFailedMessage, err)
}
