package wishlist

const (
	EventPlantAdded   = "WishlistPlantAdded"
	EventPlantRemoved = "WishlistPlantRemoved"
)

type PlantAdded struct {
	PlantID    string `json:"plant_id"`
	HasNotes   bool   `json:"has_notes"`
	TotalItems int    `json:"total_items"`
}

type PlantRemoved struct {
	PlantID    string `json:"plant_id"`
	TotalItems int    `json:"total_items"`
}
