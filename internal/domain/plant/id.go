package plant

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/example/plant-store/internal/apperr"
)

var (
	ErrPlantIDRequired = apperr.New(apperr.KindInvalidArgument, "Plant ID is required")
	ErrInvalidPlantID  = apperr.New(apperr.KindInvalidArgument, "Invalid plant ID format")
)

// ValidateID accepts only canonical catalog identifiers: 24 lowercase hex
// characters that survive a parse and re-encode unchanged.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrPlantIDRequired
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil || oid.Hex() != id {
		return ErrInvalidPlantID
	}
	return nil
}

// NewID returns a fresh catalog identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}
