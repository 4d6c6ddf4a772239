package repository

import (
	"context"
	"strings"

	"github.com/tracuu-benhly/lookup/internal/models"
	"github.com/tracuu-benhly/lookup/internal/textutil"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// prefixPattern builds an ILIKE pattern matching values that start with prefix.
func prefixPattern(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

// HistoryRepositoryImpl implements HistoryRepository
type HistoryRepositoryImpl struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) models.HistoryRepository {
	return &HistoryRepositoryImpl{db: db}
}

// List returns the newest entries whose query starts with prefix, ignoring case.
func (r *HistoryRepositoryImpl) List(ctx context.Context, prefix string, limit int) ([]models.HistoryEntry, error) {
	q := r.db.WithContext(ctx)
	if prefix = textutil.Normalize(prefix); prefix != "" {
		q = q.Where("query ILIKE ?", prefixPattern(prefix))
	}

	entries := make([]models.HistoryEntry, 0, limit)
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *HistoryRepositoryImpl) Create(ctx context.Context, query string) (*models.HistoryEntry, error) {
	entry := &models.HistoryEntry{Query: textutil.Normalize(query)}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *HistoryRepositoryImpl) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.HistoryEntry{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrHistoryNotFound
	}
	return nil
}

// SuggestionRepositoryImpl implements SuggestionRepository
type SuggestionRepositoryImpl struct {
	db *gorm.DB
}

func NewSuggestionRepository(db *gorm.DB) models.SuggestionRepository {
	return &SuggestionRepositoryImpl{db: db}
}

// List returns catalog entries starting with prefix in ascending text order.
func (r *SuggestionRepositoryImpl) List(ctx context.Context, prefix string, limit int) ([]models.Suggestion, error) {
	q := r.db.WithContext(ctx)
	if prefix = textutil.Normalize(prefix); prefix != "" {
		q = q.Where("text ILIKE ?", prefixPattern(prefix))
	}

	suggestions := make([]models.Suggestion, 0, limit)
	err := q.Order("text ASC").
		Limit(limit).
		Find(&suggestions).Error
	return suggestions, err
}

// CreateMany inserts the given texts, skipping blanks and entries already
// in the catalog. It returns how many rows were inserted.
func (r *SuggestionRepositoryImpl) CreateMany(ctx context.Context, texts []string) (int64, error) {
	seen := make(map[string]struct{}, len(texts))
	rows := make([]models.Suggestion, 0, len(texts))
	for _, text := range texts {
		text = textutil.Normalize(text)
		if text == "" {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		rows = append(rows, models.Suggestion{Text: text})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	return res.RowsAffected, res.Error
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	History    models.HistoryRepository
	Suggestion models.SuggestionRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		History:    NewHistoryRepository(db),
		Suggestion: NewSuggestionRepository(db),
	}
}
