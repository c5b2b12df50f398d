package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-catalog-feed/models"
)

func buildFilters(category, minPrice, maxPrice string, minRating float64, sortBy string) (models.Filters, error) {
	filters := models.Filters{
		Category:  strings.TrimSpace(category),
		MinRating: minRating,
		SortBy:    models.SortBy(strings.ToLower(sortBy)),
	}
	if !filters.SortBy.Valid() {
		return models.Filters{}, fmt.Errorf("unknown sort %q", sortBy)
	}
	if minRating < 0 || minRating > 5 {
		return models.Filters{}, fmt.Errorf("min rating must be between 0 and 5")
	}

	var err error
	if filters.MinPrice, err = parseBound("min-price", minPrice); err != nil {
		return models.Filters{}, err
	}
	if filters.MaxPrice, err = parseBound("max-price", maxPrice); err != nil {
		return models.Filters{}, err
	}
	return filters, nil
}

// parseBound reads an optional decimal flag; empty means unbounded.
func parseBound(name, value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s cannot be negative", name)
	}
	return d, nil
}
