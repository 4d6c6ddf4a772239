package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// SearchFailedMessage is the user-facing text for any ranking failure.
const SearchFailedMessage = "Đã xảy ra lỗi trong quá trình tìm kiếm."

var (
	ErrHistoryNotFound = errors.New("history entry not found")
	ErrEmptyQuery      = &ValidationError{Field: "query", Reason: "query cannot be empty"}
)

// ValidationError rejects malformed input before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CollaboratorError marks a failed history or catalog lookup. It is logged
// and never reaches the visible error state.
type CollaboratorError struct {
	Source string
	Err    error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s lookup failed: %v", e.Source, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// SearchError is a ranking backend failure for one model.
type SearchError struct {
	Model SearchModel
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search with model %s failed: %v", e.Model, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// ParseHistoryID accepts the id shapes a caller may hand over (Go integers,
// integral JSON numbers) and rejects everything else.
func ParseHistoryID(v any) (uint, error) {
	invalid := func(reason string) (uint, error) {
		return 0, &ValidationError{Field: "id", Reason: reason}
	}

	var n int64
	switch id := v.(type) {
	case nil:
		return invalid("id is required")
	case int:
		n = int64(id)
	case int32:
		n = int64(id)
	case int64:
		n = id
	case uint:
		if uint64(id) > math.MaxInt64 {
			return invalid("id out of range")
		}
		n = int64(id)
	case uint32:
		n = int64(id)
	case uint64:
		if id > math.MaxInt64 {
			return invalid("id out of range")
		}
		n = int64(id)
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) || id != math.Trunc(id) {
			return invalid("id must be an integer")
		}
		if id > math.MaxInt64 || id < math.MinInt64 {
			return invalid("id out of range")
		}
		n = int64(id)
	case json.Number:
		parsed, err := id.Int64()
		if err != nil {
			return invalid("id must be an integer")
		}
		n = parsed
	default:
		return invalid(fmt.Sprintf("id must be an integer, got %T", v))
	}

	if n <= 0 {
		return invalid("id must be positive")
	}
	if uint64(n) > uint64(^uint(0)) {
		return invalid("id out of range")
	}
	return uint(n), nil
}
