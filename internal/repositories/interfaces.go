package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// Repository aggregates the per-entity repositories behind one handle.
type Repository interface {
	Session() SessionRepository
	Question() QuestionRepository
}

// IsNotFoundError reports whether err came from a lookup that matched no row.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// ===== SHARED FILTER STRUCTS =====

type SessionFilters struct {
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	SortBy    string `json:"sort_by"`    // "started_at", "submitted_at", "score"
	SortOrder string `json:"sort_order"` // "asc", "desc"
}

type QuestionFilters struct {
	Active *bool  `json:"active"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	SortBy string `json:"sort_by"`
}

// ===== SHARED RESULT STRUCTS =====

// SessionStats summarizes finalized sessions for the admin dashboard.
type SessionStats struct {
	TotalSessions     int     `json:"total_sessions"`
	ActiveSessions    int     `json:"active_sessions"`
	FinalizedSessions int     `json:"finalized_sessions"`
	AverageScore      float64 `json:"average_score"`
}
