package tariff

import (
	"fmt"
	"strings"
)

// Category selects which slab table applies to a consumer. It is fixed when
// the consumer account is created.
type Category string

const (
	// CategoryResidential is the LT-I (home) tariff.
	CategoryResidential Category = "LT-I"
	// CategoryCommercial is the LT-II (office/shops) tariff.
	CategoryCommercial Category = "LT-II"
)

// Categories lists every supported category in table order.
func Categories() []Category {
	return []Category{CategoryResidential, CategoryCommercial}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == CategoryResidential || c == CategoryCommercial
}

// Description is the label shown to consumers.
func (c Category) Description() string {
	switch c {
	case CategoryResidential:
		return "Home (LT-I)"
	case CategoryCommercial:
		return "Office/Shops (LT-II)"
	default:
		return string(c)
	}
}

// ParseCategory accepts the canonical codes plus the common aliases used by
// account forms and config files.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lt-i", "lt1", "lt-1", "residential", "home", "a":
		return CategoryResidential, nil
	case "lt-ii", "lt2", "lt-2", "commercial", "office", "shops", "b":
		return CategoryCommercial, nil
	default:
		return "", fmt.Errorf("unknown consumer category %q", s)
	}
}
