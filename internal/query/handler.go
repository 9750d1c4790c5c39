package query

import (
	"context"
	"strconv"
	"strings"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/plant"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Catalog is the read surface the listing queries need.
type Catalog interface {
	Resolve(ctx context.Context, id string) (*plant.Plant, error)
	Search(ctx context.Context, params plant.SearchParams) ([]*plant.Plant, int64, error)
	Categories(ctx context.Context) ([]string, error)
}

type Handler struct {
	catalog Catalog
}

func NewHandler(catalog Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// ListPlants returns one page of plants.
func (h *Handler) ListPlants(ctx context.Context, req ListRequest) (*PlantPage, error) {
	params, err := ParseListRequest(req)
	if err != nil {
		return nil, err
	}

	plants, total, err := h.catalog.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	if plants == nil {
		plants = []*plant.Plant{}
	}

	pages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	return &PlantPage{
		Plants: plants,
		Pagination: Pagination{
			Current:    params.Page,
			Total:      pages,
			Count:      len(plants),
			TotalItems: total,
		},
	}, nil
}

func (h *Handler) GetPlant(ctx context.Context, id string) (*plant.Plant, error) {
	if err := plant.ValidateID(id); err != nil {
		return nil, err
	}
	p, err := h.catalog.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, plant.ErrPlantNotFound
	}
	return p, nil
}

func (h *Handler) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := h.catalog.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// ParseListRequest validates raw query parameters and applies defaults.
// A limit above MaxLimit is clamped.
func ParseListRequest(req ListRequest) (plant.SearchParams, error) {
	params := plant.SearchParams{
		Search:        strings.TrimSpace(req.Search),
		OnlyAvailable: req.InStock == "true",
		Page:          DefaultPage,
		Limit:         DefaultLimit,
		SortBy:        plant.SortByCreatedAt,
	}

	if c := strings.TrimSpace(req.Category); c != "" && c != "all" {
		params.Category = c
	}

	if req.Page != "" {
		page, err := strconv.Atoi(req.Page)
		if err != nil || page < 1 {
			return params, apperr.InvalidArgument("page must be a positive integer")
		}
		params.Page = page
	}

	if req.Limit != "" {
		limit, err := strconv.Atoi(req.Limit)
		if err != nil || limit < 1 {
			return params, apperr.InvalidArgument("limit must be a positive integer")
		}
		params.Limit = min(limit, MaxLimit)
	}

	switch req.SortBy {
	case "":
	case plant.SortByCreatedAt, plant.SortByPrice, plant.SortByName, plant.SortByPopularity:
		params.SortBy = req.SortBy
	default:
		return params, apperr.InvalidArgument("sortBy must be one of createdAt, price, name, popularity")
	}

	switch req.SortOrder {
	case "", "desc":
	case "asc":
		params.Ascending = true
	default:
		return params, apperr.InvalidArgument("sortOrder must be asc or desc")
	}

	return params, nil
}
