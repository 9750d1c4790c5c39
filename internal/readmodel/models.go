package readmodel

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/plant-store/internal/domain/plant"
)

// PlantSummary is the subset of catalog fields joined into cart and wishlist reads.
type PlantSummary struct {
	ID               string                 `json:"_id"`
	Name             string                 `json:"name"`
	Price            decimal.Decimal        `json:"price"`
	Categories       []plant.Category       `json:"categories"`
	IsAvailable      bool                   `json:"isAvailable"`
	Image            string                 `json:"image,omitempty"`
	ScientificName   string                 `json:"scientificName,omitempty"`
	LightRequirement plant.LightRequirement `json:"lightRequirement,omitempty"`
}

func NewPlantSummary(p *plant.Plant) PlantSummary {
	return PlantSummary{
		ID:               p.ID,
		Name:             p.Name,
		Price:            p.Price,
		Categories:       p.Categories,
		IsAvailable:      p.IsAvailable,
		Image:            p.Image,
		ScientificName:   p.ScientificName,
		LightRequirement: p.LightRequirement,
	}
}

// CartItemView is a cart line joined with the current catalog entry.
// Price is today's catalog price; CartPrice is the price captured on add.
type CartItemView struct {
	PlantSummary
	Quantity  int             `json:"quantity"`
	CartPrice decimal.Decimal `json:"cartPrice"`
	AddedAt   time.Time       `json:"addedAt"`
}

// CartView is the hydrated cart returned by reads.
type CartView struct {
	Items       []CartItemView  `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

// WishlistPlantView is a wishlist entry joined with the current catalog entry.
type WishlistPlantView struct {
	PlantSummary
	Notes   string    `json:"notes"`
	AddedAt time.Time `json:"addedAt"`
}

// WishlistView is the hydrated wishlist returned by reads.
type WishlistView struct {
	Plants     []WishlistPlantView `json:"plants"`
	TotalItems int                 `json:"totalItems"`
	UpdatedAt  *time.Time          `json:"updatedAt,omitempty"`
}
