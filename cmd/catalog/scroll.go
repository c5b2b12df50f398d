package main

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-catalog-feed/coordinator"
	"github.com/aluiziolira/go-catalog-feed/models"
)

// scroll activates filters and keeps pulling pages through a sentinel until
// the state is exhausted, errored, or maxPages pages are loaded. Each new page
// is handed to emit exactly once, in order.
func scroll(ctx context.Context, coord *coordinator.Coordinator, filters models.Filters, maxPages int, emit func(models.PageResult) error) (models.Snapshot, error) {
	sentinel := coordinator.NewSentinel(coord)
	coord.SetFilters(filters)

	emitted := 0
	for {
		snap, err := coord.Wait(ctx, func(s models.Snapshot) bool {
			switch s.Status {
			case models.StatusErrored, models.StatusExhausted:
				return true
			case models.StatusReady:
				return len(s.Pages) > emitted
			}
			return false
		})
		if err != nil {
			return snap, err
		}

		for _, page := range snap.Pages[emitted:] {
			if err := emit(page); err != nil {
				return snap, fmt.Errorf("emit page %d: %w", page.Index, err)
			}
		}
		emitted = len(snap.Pages)

		switch {
		case snap.Status == models.StatusErrored:
			return snap, fmt.Errorf("load page %d: %w", snap.NextPage, snap.Err)
		case snap.Status == models.StatusExhausted:
			return snap, nil
		case emitted >= maxPages:
			return snap, nil
		}

		// The sentinel leaves the viewport as the new page renders and comes
		// back once it has been scrolled through.
		sentinel.SetVisible(false)
		if !sentinel.SetVisible(true) {
			return coord.Snapshot(), nil
		}
	}
}
