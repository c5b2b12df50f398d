// Package query implements the pure filter, sort and page slicing steps
// applied to a fetched item collection.
package query

import (
	"cmp"
	"slices"

	"github.com/aluiziolira/go-catalog-feed/models"
)

// Matches reports whether item satisfies every active bound in f.
func Matches(item models.Item, f models.Filters) bool {
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.MinPrice.IsPositive() && item.Price.LessThan(f.MinPrice) {
		return false
	}
	if f.MaxPrice.IsPositive() && item.Price.GreaterThan(f.MaxPrice) {
		return false
	}
	if f.MinRating > 0 && item.Rating.Rate < f.MinRating {
		return false
	}
	return true
}

// Count returns how many items match f.
func Count(items []models.Item, f models.Filters) int {
	n := 0
	for _, item := range items {
		if Matches(item, f) {
			n++
		}
	}
	return n
}

// Apply filters items by f and orders the result by f.SortBy. The input
// slice is never modified. Unknown sort values keep the input order.
func Apply(items []models.Item, f models.Filters) []models.Item {
	out := make([]models.Item, 0, len(items))
	for _, item := range items {
		if Matches(item, f) {
			out = append(out, item)
		}
	}

	if compare := comparator(f.SortBy); compare != nil {
		slices.SortStableFunc(out, compare)
	}
	return out
}

func comparator(sortBy models.SortBy) func(a, b models.Item) int {
	switch sortBy {
	case models.SortPriceAsc:
		return func(a, b models.Item) int {
			return a.Price.Cmp(b.Price)
		}
	case models.SortPriceDesc:
		return func(a, b models.Item) int {
			return b.Price.Cmp(a.Price)
		}
	case models.SortRatingDesc:
		return func(a, b models.Item) int {
			return cmp.Compare(b.Rating.Rate, a.Rating.Rate)
		}
	default:
		return nil
	}
}
