// Package models defines data structures shared by the catalog feed packages.
package models

import "github.com/shopspring/decimal"

// Item is a single catalog entry as served by the listing endpoint.
type Item struct {
	ID          int             `csv:"id" json:"id"`
	Title       string          `csv:"title" json:"title"`
	Price       decimal.Decimal `csv:"price" json:"price"`
	Description string          `csv:"description" json:"description"`
	Category    string          `csv:"category" json:"category"`
	Image       string          `csv:"image" json:"image"`
	Rating      Rating          `csv:"rating" json:"rating"`
}

// Rating is the aggregated review score of an item.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// PageResult holds one page of filtered items.
type PageResult struct {
	Index   int
	Items   []Item
	HasNext bool
	// Total is the number of items matching the filters when the page was built.
	Total int
}
