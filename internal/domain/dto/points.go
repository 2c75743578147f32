package dto

import (
	"time"

	"github.com/google/uuid"
)

// PointsBalance is the cached balance of a user
type PointsBalance struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance int64     `json:"balance"`
}

// PointsEntryDTO represents a points log row for API responses
type PointsEntryDTO struct {
	Amount       int64     `json:"amount"`
	Type         string    `json:"type"`
	ReferenceID  string    `json:"reference_id,omitempty"`
	Description  string    `json:"description,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// PointsHistoryResponse represents the paginated points history
type PointsHistoryResponse struct {
	Entries    []PointsEntryDTO `json:"entries"`
	Pagination PaginationInfo   `json:"pagination"`
}

// PaginationInfo contains pagination metadata
type PaginationInfo struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// Page holds pagination query parameters
type Page struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// SetDefaults sets default values for pagination
func (p *Page) SetDefaults() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}
