package models

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// SortBy selects the ordering applied after filtering.
type SortBy string

const (
	SortPriceAsc   SortBy = "price-asc"
	SortPriceDesc  SortBy = "price-desc"
	SortRatingDesc SortBy = "rating-desc"
)

// SortOption pairs a sort value with its display label.
type SortOption struct {
	Label string
	Value SortBy
}

// SortOptions lists the orderings offered to users.
func SortOptions() []SortOption {
	return []SortOption{
		{Label: "Price: Low to High", Value: SortPriceAsc},
		{Label: "Price: High to Low", Value: SortPriceDesc},
		{Label: "Best Rating", Value: SortRatingDesc},
	}
}

// Valid reports whether s is one of the known orderings.
func (s SortBy) Valid() bool {
	switch s {
	case SortPriceAsc, SortPriceDesc, SortRatingDesc:
		return true
	default:
		return false
	}
}

// Filters is the user-selected filter configuration. Zero bounds are unbounded.
type Filters struct {
	Category  string          `json:"category"`
	MinPrice  decimal.Decimal `json:"min_price"`
	MaxPrice  decimal.Decimal `json:"max_price"`
	MinRating float64         `json:"min_rating"`
	SortBy    SortBy          `json:"sort_by"`
}

// DefaultFilters returns the configuration a fresh session starts with.
func DefaultFilters() Filters {
	return Filters{SortBy: SortPriceAsc}
}

// Key returns the canonical cache key for f. Numerically equal bounds
// produce the same key regardless of how they were written.
func (f Filters) Key() string {
	pairs := map[string]string{
		"category":   f.Category,
		"max_price":  f.MaxPrice.String(),
		"min_price":  f.MinPrice.String(),
		"min_rating": strconv.FormatFloat(f.MinRating, 'f', -1, 64),
		"sort_by":    string(f.SortBy),
	}

	names := make([]string, 0, len(pairs))
	for name := range pairs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(pairs[name]))
	}
	return b.String()
}

// Unbounded reports whether f filters nothing out.
func (f Filters) Unbounded() bool {
	return f.Category == "" && !f.MinPrice.IsPositive() && !f.MaxPrice.IsPositive() && f.MinRating <= 0
}

// Equal reports structural equality by canonical key.
func (f Filters) Equal(other Filters) bool {
	return f.Key() == other.Key()
}
