// Package coordinator drives incremental page loading for the active filter
// configuration.
//
// A Coordinator holds the query state for exactly one filter key at a time.
// Switching filters replaces that state outright, and results of fetches
// issued for a replaced state are discarded when they arrive. At most one
// fetch is in flight per state, so pages are appended strictly in order.
package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-catalog-feed/catalog"
	"github.com/aluiziolira/go-catalog-feed/models"
)

// Coordinator owns the query state for the active filters.
type Coordinator struct {
	source  catalog.Source
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex // guards state, generation, version and closed
	state      *queryState
	generation uint64
	version    uint64
	closed     bool

	events *dispatcher
}

type queryState struct {
	key        string
	filters    models.Filters
	generation uint64
	status     models.Status
	pages      []models.PageResult
	nextPage   int
	hasNext    bool
	err        error
	inFlight   bool
}

// ticket tags one fetch with the state it was issued for.
type ticket struct {
	id         string
	key        string
	filters    models.Filters
	generation uint64
	page       int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records coordinator metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// New builds a coordinator loading pages from source. Fetches run on ctx,
// which outlives individual filter changes; Close cancels it.
func New(ctx context.Context, source catalog.Source, opts ...Option) *Coordinator {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	c := &Coordinator{
		source: source,
		ctx:    ctx,
		cancel: cancel,
		events: newDispatcher(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetFilters activates filters. A new key replaces the current state and
// starts loading page 1. The same key is a no-op unless the state is
// errored, in which case the key restarts from scratch.
func (c *Coordinator) SetFilters(filters models.Filters) {
	key := filters.Key()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state != nil && c.state.key == key && c.state.status != models.StatusErrored {
		c.mu.Unlock()
		return
	}

	if c.state != nil && c.state.inFlight {
		slog.Debug("abandoning in-flight fetch",
			slog.String("key", c.state.key),
			slog.Int("page", c.state.nextPage),
		)
	}

	c.generation++
	c.state = &queryState{
		key:        key,
		filters:    filters,
		generation: c.generation,
		status:     models.StatusIdle,
		nextPage:   1,
	}
	t := c.beginFetchLocked()
	c.mu.Unlock()

	c.launch(t)
}

// RequestNextPage starts loading the next page when the state is ready, more
// pages exist and nothing is in flight. It reports whether a fetch started.
func (c *Coordinator) RequestNextPage() bool {
	c.mu.Lock()
	st := c.state
	if c.closed || st == nil || st.status != models.StatusReady || !st.hasNext || st.inFlight {
		c.mu.Unlock()
		return false
	}
	t := c.beginFetchLocked()
	c.mu.Unlock()

	c.launch(t)
	return true
}

// Retry re-attempts a failed fetch from the current next page, keeping the
// pages already loaded. It is a no-op unless the state is errored.
func (c *Coordinator) Retry() bool {
	c.mu.Lock()
	st := c.state
	if c.closed || st == nil || st.status != models.StatusErrored || st.inFlight {
		c.mu.Unlock()
		return false
	}
	t := c.beginFetchLocked()
	c.mu.Unlock()

	c.launch(t)
	return true
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Observe registers fn to receive a snapshot after every transition, in
// transition order. fn runs on a dedicated goroutine and may call back into
// the coordinator, except Close. The returned func unregisters it.
func (c *Coordinator) Observe(fn func(models.Snapshot)) (cancel func()) {
	return c.events.subscribe(fn)
}

// Wait blocks until done reports true for the current or a later snapshot,
// or ctx ends.
func (c *Coordinator) Wait(ctx context.Context, done func(models.Snapshot) bool) (models.Snapshot, error) {
	matched := make(chan models.Snapshot, 1)
	offer := func(s models.Snapshot) {
		if !done(s) {
			return
		}
		select {
		case matched <- s:
		default:
		}
	}

	// Subscribing under c.mu pins current: anything queued before it is
	// older and skipped, anything published later is newer.
	c.mu.Lock()
	current := c.snapshotLocked()
	unsubscribe := c.events.subscribe(func(s models.Snapshot) {
		if s.Version > current.Version {
			offer(s)
		}
	})
	c.mu.Unlock()
	defer unsubscribe()
	offer(current)

	select {
	case s := <-matched:
		return s, nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

// Close cancels outstanding fetches, waits for them to return and stops
// observer delivery. Later calls are no-ops.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.events.close()
}

// beginFetchLocked moves the state into a loading status and returns the
// ticket for the fetch. c.mu must be held.
func (c *Coordinator) beginFetchLocked() ticket {
	st := c.state
	st.inFlight = true
	st.err = nil
	if st.nextPage <= 1 {
		st.status = models.StatusLoadingFirstPage
	} else {
		st.status = models.StatusLoadingNextPage
	}
	c.publishLocked()

	c.wg.Add(1)
	return ticket{
		id:         uuid.NewString(),
		key:        st.key,
		filters:    st.filters,
		generation: st.generation,
		page:       st.nextPage,
	}
}

func (c *Coordinator) launch(t ticket) {
	slog.Debug("fetching page",
		slog.String("fetch_id", t.id),
		slog.String("key", t.key),
		slog.Int("page", t.page),
	)
	go c.fetch(t)
}

func (c *Coordinator) fetch(t ticket) {
	defer c.wg.Done()
	page, err := c.source.LoadPage(c.ctx, t.filters, t.page)
	c.complete(t, page, err)
}

func (c *Coordinator) complete(t ticket, page models.PageResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state
	if st == nil || st.generation != t.generation {
		c.metrics.IncStale()
		slog.Debug("discarding stale page result",
			slog.String("fetch_id", t.id),
			slog.String("key", t.key),
			slog.Int("page", t.page),
		)
		return
	}

	st.inFlight = false
	if err != nil {
		st.status = models.StatusErrored
		st.err = err
		c.metrics.IncFailure()
		slog.Error("page fetch failed",
			slog.String("fetch_id", t.id),
			slog.String("key", t.key),
			slog.Int("page", t.page),
			slog.Any("error", err),
		)
		c.publishLocked()
		return
	}

	page.Index = t.page
	st.pages = append(st.pages, page)
	st.nextPage = t.page + 1
	st.hasNext = page.HasNext
	if st.hasNext {
		st.status = models.StatusReady
	} else {
		st.status = models.StatusExhausted
	}
	c.metrics.IncPage()

	slog.Debug("page loaded",
		slog.String("fetch_id", t.id),
		slog.String("key", t.key),
		slog.Int("page", t.page),
		slog.Int("items", len(page.Items)),
		slog.Bool("has_next", st.hasNext),
	)
	c.publishLocked()
}

// publishLocked queues the current snapshot for observers. c.mu must be held
// so snapshots are queued in transition order.
func (c *Coordinator) publishLocked() {
	c.version++
	c.events.publish(c.snapshotLocked())
}

func (c *Coordinator) snapshotLocked() models.Snapshot {
	st := c.state
	if st == nil {
		return models.Snapshot{Version: c.version, Status: models.StatusIdle, NextPage: 1}
	}
	pages := make([]models.PageResult, len(st.pages))
	copy(pages, st.pages)
	return models.Snapshot{
		Version:     c.version,
		Key:         st.key,
		Filters:     st.filters,
		Status:      st.status,
		Pages:       pages,
		NextPage:    st.nextPage,
		HasNextPage: st.hasNext,
		Err:         st.err,
	}
}
