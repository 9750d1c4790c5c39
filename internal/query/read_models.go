package query

import "github.com/example/plant-store/internal/domain/plant"

// Pagination describes one page of a plant listing.
type Pagination struct {
	Current    int   `json:"current"`
	Total      int   `json:"total"`
	Count      int   `json:"count"`
	TotalItems int64 `json:"totalItems"`
}

type PlantPage struct {
	Plants     []*plant.Plant
	Pagination Pagination
}

// ListRequest carries the raw listing query parameters.
type ListRequest struct {
	Search    string
	Category  string
	InStock   string
	Page      string
	Limit     string
	SortBy    string
	SortOrder string
}
