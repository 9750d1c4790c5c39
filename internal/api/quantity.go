package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/domain/cart"
)

var errQuantityTooLarge = apperr.New(apperr.KindInvalidArgument, "Quantity is too large")

// parseQuantity reads a quantity sent as a JSON number or a numeric string.
// Fractions are truncated and a string is read up to its first non-digit.
// A missing value yields def; def 0 means the value is required.
func parseQuantity(raw json.RawMessage, def int) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if def > 0 {
			return def, nil
		}
		return 0, cart.ErrInvalidQuantity
	}

	var n int64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, cart.ErrInvalidQuantity
		}
		digits := leadingInteger(s)
		if digits == "" {
			return 0, cart.ErrInvalidQuantity
		}
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			if digits[0] == '-' {
				return 0, cart.ErrInvalidQuantity
			}
			return 0, errQuantityTooLarge
		}
		n = v
	} else {
		d, err := decimal.NewFromString(string(raw))
		if err != nil {
			return 0, cart.ErrInvalidQuantity
		}
		d = d.Truncate(0)
		if d.LessThan(decimal.NewFromInt(1)) {
			return 0, cart.ErrInvalidQuantity
		}
		if d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
			return 0, errQuantityTooLarge
		}
		n = d.IntPart()
	}

	if n > math.MaxInt32 {
		return 0, errQuantityTooLarge
	}
	if n < 1 {
		return 0, cart.ErrInvalidQuantity
	}
	return int(n), nil
}

func leadingInteger(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return ""
	}
	return s[:end]
}
