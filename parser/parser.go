// Package parser decodes and validates listing payloads.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-catalog-feed/models"
)

type rawRating struct {
	Rate  *float64 `json:"rate"`
	Count *int     `json:"count"`
}

type rawItem struct {
	ID          *int             `json:"id"`
	Title       *string          `json:"title"`
	Price       *decimal.Decimal `json:"price"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Image       string           `json:"image"`
	Rating      *rawRating       `json:"rating"`
}

// ParseItems decodes a JSON array of items. Any element that does not carry
// the required fields, or carries out-of-range values, fails the whole body.
func ParseItems(body []byte) ([]models.Item, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("expected a JSON array")
	}

	var raw []rawItem
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	items := make([]models.Item, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for i, r := range raw {
		item, err := r.toItem()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if err := ValidateItem(&item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("item %d: duplicate id %d", i, item.ID)
		}
		seen[item.ID] = struct{}{}
		items = append(items, item)
	}
	return items, nil
}

func (r rawItem) toItem() (models.Item, error) {
	switch {
	case r.ID == nil:
		return models.Item{}, fmt.Errorf("missing id")
	case r.Title == nil:
		return models.Item{}, fmt.Errorf("missing title")
	case r.Price == nil:
		return models.Item{}, fmt.Errorf("missing price")
	case r.Rating == nil || r.Rating.Rate == nil:
		return models.Item{}, fmt.Errorf("missing rating")
	}

	count := 0
	if r.Rating.Count != nil {
		count = *r.Rating.Count
	}

	return models.Item{
		ID:          *r.ID,
		Title:       NormalizeText(*r.Title),
		Price:       *r.Price,
		Description: NormalizeText(r.Description),
		Category:    NormalizeText(r.Category),
		Image:       strings.TrimSpace(r.Image),
		Rating:      models.Rating{Rate: *r.Rating.Rate, Count: count},
	}, nil
}

// ValidateItem ensures an item carries usable values.
func ValidateItem(item *models.Item) error {
	if item == nil {
		return fmt.Errorf("item is nil")
	}
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("item %d missing title", item.ID)
	}
	if item.Price.IsNegative() {
		return fmt.Errorf("item %d has negative price %s", item.ID, item.Price)
	}
	if item.Rating.Rate < 0 || item.Rating.Rate > 5 {
		return fmt.Errorf("item %d rating %.2f out of range", item.ID, item.Rating.Rate)
	}
	if item.Rating.Count < 0 {
		return fmt.Errorf("item %d has negative rating count", item.ID)
	}
	return nil
}

// NormalizeText trims surrounding whitespace and collapses inner runs.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
