package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/plant-store/internal/domain/cart"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		def     int
		want    int
		wantErr error
	}{
		{"absent uses default", "", 1, 1, nil},
		{"null uses default", "null", 1, 1, nil},
		{"absent without default", "", 0, 0, cart.ErrInvalidQuantity},
		{"integer", "7", 1, 7, nil},
		{"exponent", "1e2", 1, 100, nil},
		{"truncates fraction", "3.99", 1, 3, nil},
		{"string", `"12"`, 1, 12, nil},
		{"string with spaces", `"  5"`, 1, 5, nil},
		{"string prefix", `"8kg"`, 1, 8, nil},
		{"string fraction", `"2.5"`, 1, 2, nil},
		{"empty string", `""`, 1, 0, cart.ErrInvalidQuantity},
		{"negative string", `"-3"`, 1, 0, cart.ErrInvalidQuantity},
		{"zero", "0", 1, 0, cart.ErrInvalidQuantity},
		{"object", `{"n":1}`, 1, 0, cart.ErrInvalidQuantity},
		{"huge number", "1e40", 1, 0, errQuantityTooLarge},
		{"huge string", `"99999999999999999999"`, 1, 0, errQuantityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQuantity(json.RawMessage(tt.raw), tt.def)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
