package query

import "github.com/aluiziolira/go-catalog-feed/models"

// Slice returns the 1-indexed page of items and whether another page follows.
// Out-of-range pages yield an empty result rather than an error.
func Slice(items []models.Item, pageIndex, pageSize int) ([]models.Item, bool) {
	if pageIndex < 1 || pageSize < 1 {
		return []models.Item{}, false
	}

	// Compare page counts instead of offsets so huge indexes cannot overflow.
	pages := len(items) / pageSize
	if len(items)%pageSize != 0 {
		pages++
	}
	if pageIndex > pages {
		return []models.Item{}, false
	}
	start := (pageIndex - 1) * pageSize
	end := min(start+pageSize, len(items))

	page := make([]models.Item, end-start)
	copy(page, items[start:end])
	return page, pageIndex < pages
}

// Page builds a PageResult for pageIndex out of an already filtered sequence.
func Page(filtered []models.Item, pageIndex, pageSize int) models.PageResult {
	items, hasNext := Slice(filtered, pageIndex, pageSize)
	return models.PageResult{
		Index:   pageIndex,
		Items:   items,
		HasNext: hasNext,
		Total:   len(filtered),
	}
}
