package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-catalog-feed/catalog"
	"github.com/aluiziolira/go-catalog-feed/models"
)

const waitTimeout = 2 * time.Second

// memoryRepo serves a fixed collection and counts full fetches.
type memoryRepo struct {
	items []models.Item
	calls atomic.Int32
}

func (r *memoryRepo) FetchAll(ctx context.Context) ([]models.Item, error) {
	r.calls.Add(1)
	out := make([]models.Item, len(r.items))
	copy(out, r.items)
	return out, nil
}

func (r *memoryRepo) FetchPage(ctx context.Context, offset, limit int) ([]models.Item, error) {
	end := min(offset+limit, len(r.items))
	if offset > end {
		offset = end
	}
	return r.items[offset:end], nil
}

func (r *memoryRepo) FetchTotalCount(ctx context.Context) (int, error) {
	return len(r.items), nil
}

type loadReply struct {
	page models.PageResult
	err  error
}

type loadCall struct {
	filters models.Filters
	page    int
	reply   chan loadReply
}

// blockingSource hands every LoadPage call to the test and waits for a reply.
type blockingSource struct {
	calls chan loadCall
}

func newBlockingSource() *blockingSource {
	return &blockingSource{calls: make(chan loadCall, 16)}
}

func (s *blockingSource) LoadPage(ctx context.Context, filters models.Filters, page int) (models.PageResult, error) {
	call := loadCall{filters: filters, page: page, reply: make(chan loadReply, 1)}
	s.calls <- call
	select {
	case r := <-call.reply:
		return r.page, r.err
	case <-ctx.Done():
		return models.PageResult{}, ctx.Err()
	}
}

func (s *blockingSource) next(t *testing.T) loadCall {
	t.Helper()
	select {
	case call := <-s.calls:
		return call
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for LoadPage call")
		return loadCall{}
	}
}

func (s *blockingSource) expectIdle(t *testing.T) {
	t.Helper()
	select {
	case call := <-s.calls:
		t.Fatalf("unexpected LoadPage call for page %d key %s", call.page, call.filters.Key())
	case <-time.After(50 * time.Millisecond):
	}
}

func fixture(n int) []models.Item {
	categories := []string{"electronics", "jewelery", "men's clothing"}
	items := make([]models.Item, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, models.Item{
			ID:       i,
			Title:    fmt.Sprintf("Item %d", i),
			Price:    decimal.NewFromInt(int64((i*11)%29 + 1)),
			Category: categories[i%len(categories)],
			Rating:   models.Rating{Rate: float64((i*3)%11) / 2, Count: i},
		})
	}
	return items
}

func waitStatus(t *testing.T, c *Coordinator, want models.Status, pages int) models.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	snap, err := c.Wait(ctx, func(s models.Snapshot) bool {
		return s.Status == want && len(s.Pages) == pages
	})
	require.NoError(t, err, "last snapshot: status=%s pages=%d", snap.Status, len(snap.Pages))
	return snap
}

func newMemoryCoordinator(t *testing.T, items []models.Item) (*Coordinator, *memoryRepo) {
	t.Helper()
	repo := &memoryRepo{items: items}
	c := New(context.Background(), catalog.NewFullCollectionSource(repo, 8))
	t.Cleanup(c.Close)
	return c, repo
}

func TestCoordinatorScrollsSeventeenItems(t *testing.T) {
	items := fixture(17)
	c, _ := newMemoryCoordinator(t, items)

	assert.Equal(t, models.StatusIdle, c.Snapshot().Status)

	c.SetFilters(models.Filters{SortBy: models.SortPriceAsc})
	snap := waitStatus(t, c, models.StatusReady, 1)
	require.Len(t, snap.Pages[0].Items, 8)
	assert.True(t, snap.HasNextPage)
	assert.Equal(t, 2, snap.NextPage)

	require.True(t, c.RequestNextPage())
	snap = waitStatus(t, c, models.StatusReady, 2)
	require.Len(t, snap.Pages[1].Items, 8)
	assert.True(t, snap.HasNextPage)

	require.True(t, c.RequestNextPage())
	snap = waitStatus(t, c, models.StatusExhausted, 3)
	require.Len(t, snap.Pages[2].Items, 1)
	assert.False(t, snap.HasNextPage)
	assert.False(t, c.RequestNextPage(), "exhausted state must ignore requests")

	all := snap.Items()
	require.Len(t, all, 17)
	seen := make(map[int]bool)
	for i, item := range all {
		assert.False(t, seen[item.ID], "duplicate item %d", item.ID)
		seen[item.ID] = true
		if i > 0 {
			assert.True(t, all[i-1].Price.LessThanOrEqual(item.Price), "not ascending at %d", i)
		}
	}
	for i, page := range snap.Pages {
		assert.Equal(t, i+1, page.Index)
	}
}

func TestCoordinatorSameFiltersIsNoop(t *testing.T) {
	c, repo := newMemoryCoordinator(t, fixture(17))

	filters := models.Filters{MinPrice: decimal.RequireFromString("5"), SortBy: models.SortPriceAsc}
	c.SetFilters(filters)
	before := waitStatus(t, c, models.StatusReady, 1)
	calls := repo.calls.Load()

	same := models.Filters{MinPrice: decimal.RequireFromString("5.00"), SortBy: models.SortPriceAsc}
	c.SetFilters(same)

	after := c.Snapshot()
	assert.Equal(t, models.StatusReady, after.Status)
	assert.Equal(t, before.Pages, after.Pages)
	assert.Equal(t, calls, repo.calls.Load(), "unchanged filters must not refetch")
}

func TestCoordinatorInvertedRange(t *testing.T) {
	c, _ := newMemoryCoordinator(t, fixture(17))

	c.SetFilters(models.Filters{MinPrice: decimal.NewFromInt(100), MaxPrice: decimal.NewFromInt(50), SortBy: models.SortPriceAsc})
	snap := waitStatus(t, c, models.StatusExhausted, 1)
	assert.Empty(t, snap.Pages[0].Items)
	assert.False(t, snap.HasNextPage)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.IsErrored())
}

// scrollToEnd requests pages until the state is exhausted.
func scrollToEnd(t *testing.T, c *Coordinator) models.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	for {
		snap, err := c.Wait(ctx, func(s models.Snapshot) bool {
			return s.Status == models.StatusReady || s.Status == models.StatusExhausted || s.Status == models.StatusErrored
		})
		require.NoError(t, err)
		require.NoError(t, snap.Err)
		if snap.Status == models.StatusExhausted {
			return snap
		}
		require.True(t, c.RequestNextPage())
	}
}

func TestCoordinatorCategoryAndRating(t *testing.T) {
	c, _ := newMemoryCoordinator(t, fixture(60))

	c.SetFilters(models.Filters{Category: "electronics", MinRating: 4, SortBy: models.SortRatingDesc})
	snap := scrollToEnd(t, c)

	items := snap.Items()
	require.NotEmpty(t, items)
	for i, item := range items {
		assert.Equal(t, "electronics", item.Category)
		assert.GreaterOrEqual(t, item.Rating.Rate, 4.0)
		if i > 0 {
			assert.GreaterOrEqual(t, items[i-1].Rating.Rate, item.Rating.Rate)
		}
	}
	assert.Equal(t, []string{"electronics"}, snap.Categories())
}

func TestCoordinatorDiscardsStaleSuccess(t *testing.T) {
	source := newBlockingSource()
	c := New(context.Background(), source)
	t.Cleanup(c.Close)

	filtersA := models.Filters{Category: "a", SortBy: models.SortPriceAsc}
	filtersB := models.Filters{Category: "b", SortBy: models.SortPriceAsc}

	c.SetFilters(filtersA)
	callA := source.next(t)
	c.SetFilters(filtersB)
	callB := source.next(t)
	require.Equal(t, filtersB.Key(), callB.filters.Key())

	callA.reply <- loadReply{page: models.PageResult{Items: []models.Item{{ID: 1, Category: "a"}}, HasNext: true}}
	source.expectIdle(t)

	snap := c.Snapshot()
	assert.Equal(t, filtersB.Key(), snap.Key)
	assert.Equal(t, models.StatusLoadingFirstPage, snap.Status)
	assert.Empty(t, snap.Pages)

	callB.reply <- loadReply{page: models.PageResult{Items: []models.Item{{ID: 2, Category: "b"}}}}
	snap = waitStatus(t, c, models.StatusExhausted, 1)
	require.Len(t, snap.Items(), 1)
	assert.Equal(t, 2, snap.Items()[0].ID)
}

func TestCoordinatorDiscardsStaleFailure(t *testing.T) {
	source := newBlockingSource()
	metrics := NewMetrics(prometheus.NewRegistry())
	c := New(context.Background(), source, WithMetrics(metrics))
	t.Cleanup(c.Close)

	c.SetFilters(models.Filters{Category: "a"})
	callA := source.next(t)
	c.SetFilters(models.Filters{Category: "b"})
	callB := source.next(t)

	callB.reply <- loadReply{page: models.PageResult{Items: []models.Item{{ID: 7}}, HasNext: true}}
	waitStatus(t, c, models.StatusReady, 1)

	callA.reply <- loadReply{err: catalog.NetworkError{Kind: catalog.KindStatus, StatusCode: 500, Err: errors.New("boom")}}
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.StaleResults) == 1
	}, waitTimeout, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, models.StatusReady, snap.Status)
	assert.NoError(t, snap.Err)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FetchFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PagesLoaded))
}

func TestCoordinatorOneFetchInFlight(t *testing.T) {
	source := newBlockingSource()
	c := New(context.Background(), source)
	t.Cleanup(c.Close)

	c.SetFilters(models.DefaultFilters())
	assert.False(t, c.RequestNextPage(), "first page still loading")
	first := source.next(t)
	assert.Equal(t, 1, first.page)
	first.reply <- loadReply{page: models.PageResult{Items: []models.Item{{ID: 1}}, HasNext: true}}
	waitStatus(t, c, models.StatusReady, 1)

	require.True(t, c.RequestNextPage())
	assert.False(t, c.RequestNextPage())
	assert.False(t, c.RequestNextPage())
	assert.True(t, c.Snapshot().IsLoadingNextPage())

	second := source.next(t)
	assert.Equal(t, 2, second.page)
	source.expectIdle(t)

	second.reply <- loadReply{page: models.PageResult{Items: []models.Item{{ID: 2}}}}
	snap := waitStatus(t, c, models.StatusExhausted, 2)
	assert.Equal(t, []int{1, 2}, []int{snap.Pages[0].Items[0].ID, snap.Pages[1].Items[0].ID})
}

func TestCoordinatorErrorsAndRetry(t *testing.T) {
	source := newBlockingSource()
	c := New(context.Background(), source)
	t.Cleanup(c.Close)

	filters := models.DefaultFilters()
	c.SetFilters(filters)
	source.next(t).reply <- loadReply{page: models.PageResult{Items: []models.Item{{ID: 1}}, HasNext: true}}
	waitStatus(t, c, models.StatusReady, 1)

	require.True(t, c.RequestNextPage())
	failure := catalog.DecodeError{URL: "http://example.test/products", Err: errors.New("bad body")}
	source.next(t).reply <- loadReply{err: failure}

	snap := waitStatus(t, c, models.StatusErrored, 1)
	assert.True(t, snap.IsErrored())
	var decodeErr catalog.DecodeError
	require.ErrorAs(t, snap.Err, &decodeErr)
	assert.Equal(t, 2, snap.NextPage)

	assert.False(t, c.RequestNextPage(), "errored state does not auto-advance")
	source.expectIdle(t)

	require.True(t, c.Retry())
	retry := source.next(t)
	assert.Equal(t, 2, retry.page, "retry resumes from the failed page")
	retry.reply <- loadReply{page: models.PageResult{Items: []models.Item{{ID: 2}}}}
	snap = waitStatus(t, c, models.StatusExhausted, 2)
	assert.NoError(t, snap.Err)
}

func TestCoordinatorSameFiltersRestartsAfterError(t *testing.T) {
	source := newBlockingSource()
	c := New(context.Background(), source)
	t.Cleanup(c.Close)

	filters := models.DefaultFilters()
	c.SetFilters(filters)
	source.next(t).reply <- loadReply{page: models.PageResult{Items: []models.Item{{ID: 1}}, HasNext: true}}
	waitStatus(t, c, models.StatusReady, 1)
	require.True(t, c.RequestNextPage())
	source.next(t).reply <- loadReply{err: errors.New("offline")}
	waitStatus(t, c, models.StatusErrored, 1)

	c.SetFilters(filters)
	restart := source.next(t)
	assert.Equal(t, 1, restart.page)

	snap := c.Snapshot()
	assert.Equal(t, models.StatusLoadingFirstPage, snap.Status)
	assert.Empty(t, snap.Pages, "restart discards pages of the errored state")
	restart.reply <- loadReply{page: models.PageResult{Items: []models.Item{{ID: 1}}}}
	waitStatus(t, c, models.StatusExhausted, 1)
}

func TestCoordinatorObserversSeeTransitionsInOrder(t *testing.T) {
	c, _ := newMemoryCoordinator(t, fixture(10))

	var mu sync.Mutex
	var statuses []models.Status
	cancel := c.Observe(func(s models.Snapshot) {
		mu.Lock()
		statuses = append(statuses, s.Status)
		mu.Unlock()
	})
	defer cancel()

	c.SetFilters(models.DefaultFilters())
	waitStatus(t, c, models.StatusReady, 1)
	require.True(t, c.RequestNextPage())
	waitStatus(t, c, models.StatusExhausted, 2)

	want := []models.Status{
		models.StatusLoadingFirstPage,
		models.StatusReady,
		models.StatusLoadingNextPage,
		models.StatusExhausted,
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == len(want)
	}, waitTimeout, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, statuses)
}

func TestCoordinatorCloseCancelsInFlight(t *testing.T) {
	source := newBlockingSource()
	c := New(context.Background(), source)

	c.SetFilters(models.DefaultFilters())
	source.next(t)

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatalf("close did not return")
	}

	snap := c.Snapshot()
	assert.True(t, snap.IsErrored())
	assert.ErrorIs(t, snap.Err, context.Canceled)

	c.SetFilters(models.Filters{Category: "after-close"})
	assert.Equal(t, snap.Key, c.Snapshot().Key, "closed coordinator ignores new filters")
	c.Close()
}
