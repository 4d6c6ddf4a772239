package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SearchModel selects which backend scorer answers a query.
type SearchModel string

const (
	ModelBM25        SearchModel = "bm25"
	ModelWord2Vec    SearchModel = "word2vec"
	ModelHuggingFace SearchModel = "huggingface"
)

var modelLabels = map[SearchModel]string{
	ModelBM25:        "BM25",
	ModelWord2Vec:    "Word2Vec",
	ModelHuggingFace: "HuggingFace",
}

// AllSearchModels returns the known models in display order.
func AllSearchModels() []SearchModel {
	return []SearchModel{ModelBM25, ModelWord2Vec, ModelHuggingFace}
}

// ParseSearchModel accepts a model identifier case-insensitively.
func ParseSearchModel(s string) (SearchModel, error) {
	m := SearchModel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := modelLabels[m]; !ok {
		return "", &ValidationError{Field: "model", Reason: fmt.Sprintf("unknown search model %q", s)}
	}
	return m, nil
}

// Label is the human readable name shown in the model chooser.
func (m SearchModel) Label() string {
	if l, ok := modelLabels[m]; ok {
		return l
	}
	return "Model"
}

// ResultID is the backend's result identifier. Backends send it either
// as a JSON string or as a number.
type ResultID string

func (id *ResultID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ResultID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("result id must be a string or number: %w", err)
	}
	*id = ResultID(n.String())
	return nil
}

type SearchResult struct {
	ID          ResultID `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Content     string   `json:"content,omitempty"`
}

// SearchResponse is the ranking backend payload for one (query, model) pair.
type SearchResponse struct {
	Results         []SearchResult `json:"results"`
	NumberOfResults int            `json:"number_of_results"`
	QueryTime       float64        `json:"query_time"`
}

// Summary renders the one-line result banner for the given model.
func (r *SearchResponse) Summary(model SearchModel) string {
	return FormatSummary(model, r.NumberOfResults, r.QueryTime)
}

// ComparisonRow is one model's outcome in a comparison run.
type ComparisonRow struct {
	Model       SearchModel    `json:"model"`
	ResultCount int            `json:"number_of_results"`
	ElapsedMs   float64        `json:"query_time"`
	Results     []SearchResult `json:"results"`
}

func (r ComparisonRow) Summary() string {
	return FormatSummary(r.Model, r.ResultCount, r.ElapsedMs)
}

// NewComparisonRow projects a backend payload into a row.
func NewComparisonRow(model SearchModel, resp *SearchResponse) ComparisonRow {
	row := ComparisonRow{Model: model}
	if resp == nil {
		return row
	}
	row.ResultCount = resp.NumberOfResults
	row.ElapsedMs = resp.QueryTime
	row.Results = resp.Results
	return row
}

// FormatElapsed renders milliseconds with exactly two decimals.
func FormatElapsed(ms float64) string {
	return fmt.Sprintf("%.2f", ms)
}

func FormatSummary(model SearchModel, count int, elapsedMs float64) string {
	return fmt.Sprintf("Sử dụng mô hình %s, tìm thấy %d kết quả trong vòng %s ms.", model, count, FormatElapsed(elapsedMs))
}

// DiseaseDetail is the article returned by the backend detail endpoint.
type DiseaseDetail struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CandidateList holds catalog suggestions followed by history entries.
// The two segments never interleave.
type CandidateList struct {
	Suggestions []Suggestion   `json:"suggestions"`
	History     []HistoryEntry `json:"history"`
}

func EmptyCandidates() CandidateList {
	return CandidateList{Suggestions: []Suggestion{}, History: []HistoryEntry{}}
}

func (c CandidateList) Len() int {
	return len(c.Suggestions) + len(c.History)
}

func (c CandidateList) IsEmpty() bool {
	return c.Len() == 0
}

// Texts flattens the list in display order.
func (c CandidateList) Texts() []string {
	out := make([]string, 0, c.Len())
	for _, s := range c.Suggestions {
		out = append(out, s.Text)
	}
	for _, h := range c.History {
		out = append(out, h.Query)
	}
	return out
}

// HasHistory reports whether the history segment contains id.
func (c CandidateList) HasHistory(id uint) bool {
	for _, h := range c.History {
		if h.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no backing arrays with c.
func (c CandidateList) Clone() CandidateList {
	return CandidateList{
		Suggestions: append([]Suggestion{}, c.Suggestions...),
		History:     append([]HistoryEntry{}, c.History...),
	}
}

// WithoutHistory returns a copy with the history entry id removed.
func (c CandidateList) WithoutHistory(id uint) CandidateList {
	out := CandidateList{
		Suggestions: append([]Suggestion{}, c.Suggestions...),
		History:     make([]HistoryEntry, 0, len(c.History)),
	}
	for _, h := range c.History {
		if h.ID != id {
			out.History = append(out.History, h)
		}
	}
	return out
}
