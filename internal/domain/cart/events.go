package cart

import "github.com/shopspring/decimal"

const (
	EventItemAdded           = "CartItemAdded"
	EventItemQuantityUpdated = "CartItemQuantityUpdated"
	EventItemRemoved         = "CartItemRemoved"
	EventCartCleared         = "CartCleared"
)

type ItemAdded struct {
	PlantID     string          `json:"plant_id"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Merged      bool            `json:"merged"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type ItemQuantityUpdated struct {
	PlantID     string          `json:"plant_id"`
	Quantity    int             `json:"quantity"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type ItemRemoved struct {
	PlantID     string          `json:"plant_id"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type Cleared struct {
	RemovedItems int `json:"removed_items"`
}
