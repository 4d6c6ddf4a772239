package models

// GORM models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// HistoryEntry is one submitted query. Rows are never updated.
type HistoryEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Query     string    `json:"query" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`
}

// Suggestion is a curated catalog entry.
type Suggestion struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Text string `json:"text" gorm:"unique;not null"`
}

// Database interfaces for repository pattern
type HistoryRepository interface {
	List(ctx context.Context, prefix string, limit int) ([]HistoryEntry, error)
	Create(ctx context.Context, query string) (*HistoryEntry, error)
	Delete(ctx context.Context, id uint) error
}

type SuggestionRepository interface {
	List(ctx context.Context, prefix string, limit int) ([]Suggestion, error)
	CreateMany(ctx context.Context, texts []string) (int64, error)
}

// TableName methods for custom table names
func (HistoryEntry) TableName() string { return "search_history" }
func (Suggestion) TableName() string   { return "suggestions" }

// Model validation methods
func (h *HistoryEntry) Validate() error {
	if strings.TrimSpace(h.Query) == "" {
		return fmt.Errorf("query text is required")
	}
	return nil
}

func (s *Suggestion) Validate() error {
	if strings.TrimSpace(s.Text) == "" {
		return fmt.Errorf("suggestion text is required")
	}
	return nil
}

// GORM hooks
func (h *HistoryEntry) BeforeCreate(tx *gorm.DB) error {
	return h.Validate()
}

func (s *Suggestion) BeforeCreate(tx *gorm.DB) error {
	return s.Validate()
}
