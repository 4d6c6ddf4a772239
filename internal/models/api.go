package models

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Model string `json:"model"`
}

type SearchAPIResponse struct {
	Query   string          `json:"query"`
	Model   SearchModel     `json:"model"`
	History *HistoryEntry   `json:"history,omitempty"`
	Result  *SearchResponse `json:"result"`
	Summary string          `json:"summary"`
}

// DeleteHistoryRequest keeps the id untyped so validation can tell a
// string or fractional id apart from a missing one.
type DeleteHistoryRequest struct {
	ID any `json:"id"`
}

type CompareAPIResponse struct {
	Query string          `json:"query"`
	Rows  []ComparisonRow `json:"rows"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime,omitempty"`
}
