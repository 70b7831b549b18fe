package dto

import (
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
)

// ListResponse represents one page of items
type ListResponse[T any] struct {
	Items      []T                      `json:"items"`
	Pagination utils.PaginationResponse `json:"pagination"`
	TotalPages int                      `json:"total_pages"`
}

// ToListResponse wraps a page of items with its pagination metadata
func ToListResponse[T any](items []T, page utils.PaginationParams, total int64) ListResponse[T] {
	if items == nil {
		items = []T{}
	}

	totalPages := int(total) / page.Limit
	if int(total)%page.Limit > 0 {
		totalPages++
	}

	return ListResponse[T]{
		Items:      items,
		Pagination: page.Response(total),
		TotalPages: totalPages,
	}
}

// GeneratedTasksResponse is returned by story task generation
type GeneratedTasksResponse struct {
	Story models.Story  `json:"story"`
	Tasks []models.Task `json:"tasks"`
	Count int           `json:"count"`
}
