package plant

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/example/plant-store/internal/apperr"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	DefaultImage         = "https://via.placeholder.com/300x300?text=Plant"
)

type Category string

const (
	CategoryIndoor       Category = "Indoor"
	CategoryOutdoor      Category = "Outdoor"
	CategorySucculent    Category = "Succulent"
	CategoryAirPurifying Category = "Air Purifying"
	CategoryHomeDecor    Category = "Home Decor"
	CategoryFlowering    Category = "Flowering"
	CategoryFoliage      Category = "Foliage"
	CategoryMedicinal    Category = "Medicinal"
)

// Categories lists every category the catalog accepts.
var Categories = []Category{
	CategoryIndoor, CategoryOutdoor, CategorySucculent, CategoryAirPurifying,
	CategoryHomeDecor, CategoryFlowering, CategoryFoliage, CategoryMedicinal,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type LightRequirement string

const (
	LightLow    LightRequirement = "Low"
	LightMedium LightRequirement = "Medium"
	LightHigh   LightRequirement = "High"
)

func (l LightRequirement) Valid() bool {
	return l == LightLow || l == LightMedium || l == LightHigh
}

var (
	ErrPlantNotFound    = apperr.New(apperr.KindNotFound, "Plant not found")
	ErrPlantUnavailable = apperr.New(apperr.KindUnavailable, "Plant is not available")
)

// Plant is a catalog entry. The cart and wishlist only ever read it.
type Plant struct {
	ID                string           `json:"_id"`
	Name              string           `json:"name"`
	Price             decimal.Decimal  `json:"price"`
	Categories        []Category       `json:"categories"`
	IsAvailable       bool             `json:"isAvailable"`
	Description       string           `json:"description,omitempty"`
	ScientificName    string           `json:"scientificName,omitempty"`
	Image             string           `json:"image,omitempty"`
	LightRequirement  LightRequirement `json:"lightRequirement,omitempty"`
	WateringFrequency string           `json:"wateringFrequency,omitempty"`
	PotSize           string           `json:"potSize,omitempty"`
	CareInstructions  string           `json:"careInstructions,omitempty"`
	Popularity        int              `json:"popularity"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// Normalize trims text fields and fills catalog defaults.
func (p *Plant) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.ScientificName = strings.TrimSpace(p.ScientificName)
	if p.Image == "" {
		p.Image = DefaultImage
	}
	if p.LightRequirement == "" {
		p.LightRequirement = LightMedium
	}
}

// Validate checks the field constraints of a catalog entry.
func (p *Plant) Validate() error {
	switch {
	case p.Name == "":
		return apperr.InvalidArgument("Name is required")
	case utf8.RuneCountInString(p.Name) > MaxNameLength:
		return apperr.InvalidArgument("Plant name cannot exceed %d characters", MaxNameLength)
	case p.Price.IsNegative():
		return apperr.InvalidArgument("Price cannot be negative")
	case len(p.Categories) == 0:
		return apperr.InvalidArgument("At least one category is required")
	case utf8.RuneCountInString(p.Description) > MaxDescriptionLength:
		return apperr.InvalidArgument("Description cannot exceed %d characters", MaxDescriptionLength)
	case p.LightRequirement != "" && !p.LightRequirement.Valid():
		return apperr.InvalidArgument("Invalid light requirement %q", p.LightRequirement)
	case p.Popularity < 0 || p.Popularity > 100:
		return apperr.InvalidArgument("Popularity must be between 0 and 100")
	}
	for _, c := range p.Categories {
		if !c.Valid() {
			return apperr.InvalidArgument("Invalid category %q", c)
		}
	}
	return nil
}

func (p *Plant) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.ID)
}

// Catalog resolves plant references. Implementations return ErrPlantNotFound
// from Resolve when the id does not exist.
type Catalog interface {
	Resolve(ctx context.Context, id string) (*Plant, error)
	// ResolveMany omits ids that do not resolve from the result.
	ResolveMany(ctx context.Context, ids []string) (map[string]*Plant, error)
}

// Sort fields accepted by catalog searches.
const (
	SortByCreatedAt  = "createdAt"
	SortByPrice      = "price"
	SortByName       = "name"
	SortByPopularity = "popularity"
)

// SearchParams filters and pages a catalog listing.
type SearchParams struct {
	Search        string
	Category      string
	OnlyAvailable bool
	Page          int
	Limit         int
	SortBy        string
	Ascending     bool
}

// Skip is the number of entries before the requested page.
func (p SearchParams) Skip() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}
