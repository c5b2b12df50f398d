package catalog

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-catalog-feed/config"
	"github.com/aluiziolira/go-catalog-feed/models"
	"github.com/aluiziolira/go-catalog-feed/query"
)

// Source produces filtered pages for a filter configuration.
type Source interface {
	LoadPage(ctx context.Context, filters models.Filters, page int) (models.PageResult, error)
}

// Repository is the raw retrieval contract implemented by Client.
type Repository interface {
	FetchAll(ctx context.Context) ([]models.Item, error)
	FetchPage(ctx context.Context, offset, limit int) ([]models.Item, error)
	FetchTotalCount(ctx context.Context) (int, error)
}

// NewSource returns the page source selected by cfg.Mode.
func NewSource(cfg *config.Config, repo Repository) (Source, error) {
	switch cfg.Mode {
	case config.ModeFull:
		return NewFullCollectionSource(repo, cfg.PageSize), nil
	case config.ModeOffset:
		return NewOffsetSource(repo, cfg.PageSize, cfg.CountCacheSize, cfg.OffsetBound == config.BoundTotal)
	default:
		return nil, fmt.Errorf("unknown source mode %q", cfg.Mode)
	}
}

// FullCollectionSource fetches the whole collection for every page and
// paginates locally, so ordering is global across pages.
type FullCollectionSource struct {
	repo     Repository
	pageSize int
}

// NewFullCollectionSource builds a source paginating client-side.
func NewFullCollectionSource(repo Repository, pageSize int) *FullCollectionSource {
	return &FullCollectionSource{repo: repo, pageSize: pageSize}
}

// LoadPage implements Source.
func (s *FullCollectionSource) LoadPage(ctx context.Context, filters models.Filters, page int) (models.PageResult, error) {
	items, err := s.repo.FetchAll(ctx)
	if err != nil {
		return models.PageResult{}, err
	}
	return query.Page(query.Apply(items, filters), page, s.pageSize), nil
}

// collectionCounts are the bounds used by OffsetSource for one filter key.
type collectionCounts struct {
	total    int
	matching int
}

// OffsetSource pushes limit/offset to the endpoint and filters each window.
// Sorting therefore only orders items within a page. Collection counts are
// fetched once per filter key and kept in an LRU cache.
//
// Pagination ends after ceil(matching/pageSize) pages. Windows are cut before
// filtering, so matches sitting past that point are never reached; set
// boundByTotal to keep paging until the raw collection is exhausted instead.
type OffsetSource struct {
	repo         Repository
	pageSize     int
	boundByTotal bool
	counts       *lru.Cache[string, collectionCounts]
}

// NewOffsetSource builds a source using endpoint-side pagination.
func NewOffsetSource(repo Repository, pageSize, cacheSize int, boundByTotal bool) (*OffsetSource, error) {
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	counts, err := lru.New[string, collectionCounts](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create count cache: %w", err)
	}
	return &OffsetSource{repo: repo, pageSize: pageSize, boundByTotal: boundByTotal, counts: counts}, nil
}

// LoadPage implements Source.
func (s *OffsetSource) LoadPage(ctx context.Context, filters models.Filters, page int) (models.PageResult, error) {
	if page < 1 {
		return models.PageResult{Index: page, Items: []models.Item{}}, nil
	}

	counts, err := s.countsFor(ctx, filters)
	if err != nil {
		return models.PageResult{}, err
	}

	bound := counts.matching
	if s.boundByTotal && counts.matching > 0 {
		bound = counts.total
	}
	last := pageCount(bound, s.pageSize)
	if page > last {
		return models.PageResult{Index: page, Items: []models.Item{}, Total: counts.matching}, nil
	}

	window, err := s.repo.FetchPage(ctx, (page-1)*s.pageSize, s.pageSize)
	if err != nil {
		return models.PageResult{}, err
	}

	return models.PageResult{
		Index:   page,
		Items:   query.Apply(window, filters),
		HasNext: page < last,
		Total:   counts.matching,
	}, nil
}

func pageCount(n, pageSize int) int {
	pages := n / pageSize
	if n%pageSize != 0 {
		pages++
	}
	return pages
}

func (s *OffsetSource) countsFor(ctx context.Context, filters models.Filters) (collectionCounts, error) {
	key := filters.Key()
	if counts, ok := s.counts.Get(key); ok {
		return counts, nil
	}

	var counts collectionCounts
	if filters.Unbounded() {
		total, err := s.repo.FetchTotalCount(ctx)
		if err != nil {
			return collectionCounts{}, err
		}
		counts = collectionCounts{total: total, matching: total}
	} else {
		items, err := s.repo.FetchAll(ctx)
		if err != nil {
			return collectionCounts{}, err
		}
		counts = collectionCounts{total: len(items), matching: query.Count(items, filters)}
	}
	s.counts.Add(key, counts)
	slog.Debug("cached collection counts",
		slog.String("key", key),
		slog.Int("total", counts.total),
		slog.Int("matching", counts.matching),
	)
	return counts, nil
}
