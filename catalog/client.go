// Package catalog retrieves items from the remote listing endpoint and
// turns them into filtered pages.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-catalog-feed/config"
	"github.com/aluiziolira/go-catalog-feed/models"
	"github.com/aluiziolira/go-catalog-feed/parser"
)

// Request phases used as metric labels.
const (
	phaseAll  = "all"
	phasePage = "page"
)

// Client performs raw retrieval from the listing endpoint. It applies no
// filtering.
type Client struct {
	itemsURL  string
	collector *colly.Collector
	limiter   *rate.Limiter
	group     singleflight.Group
	Metrics   *Metrics
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	// Every status reaches OnResponse; classifyError decides what fails.
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := int(math.Max(1, math.Ceil(cfg.RequestsPerSecond)))

	return &Client{
		itemsURL:  cfg.ItemsURL(),
		collector: collector,
		limiter:   rate.NewLimiter(limit, burst),
		Metrics:   NewMetrics(),
	}, nil
}

// WithTransport replaces the HTTP transport used for every request.
func (c *Client) WithTransport(transport http.RoundTripper) {
	c.collector.WithTransport(transport)
}

// FetchAll retrieves the full item collection. Concurrent calls share one
// request.
func (c *Client) FetchAll(ctx context.Context) ([]models.Item, error) {
	v, err, shared := c.group.Do(phaseAll, func() (interface{}, error) {
		return c.fetchItems(ctx, c.itemsURL, phaseAll)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("shared full collection fetch", slog.String("url", c.itemsURL))
	}
	return v.([]models.Item), nil
}

// FetchPage retrieves limit items starting at offset using the endpoint's
// own pagination parameters.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) ([]models.Item, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	return c.fetchItems(ctx, c.itemsURL+"?"+query.Encode(), phasePage)
}

// FetchTotalCount returns the size of the full collection.
func (c *Client) FetchTotalCount(ctx context.Context) (int, error) {
	items, err := c.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (c *Client) fetchItems(ctx context.Context, rawURL, phase string) ([]models.Item, error) {
	body, err := c.get(ctx, rawURL, phase)
	if err != nil {
		return nil, err
	}

	items, err := parser.ParseItems(body)
	if err != nil {
		decodeErr := DecodeError{URL: rawURL, Err: err}
		c.Metrics.IncError(errorTypeLabel(decodeErr))
		slog.Error("decode response",
			slog.String("url", rawURL),
			slog.Any("error", err),
		)
		return nil, decodeErr
	}

	c.Metrics.AddItems(len(items))
	return items, nil
}

func (c *Client) get(ctx context.Context, rawURL, phase string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(classifyError(rawURL, err, 0))
	}
	if err := ctx.Err(); err != nil {
		return nil, c.fail(classifyError(rawURL, err, 0))
	}

	collector := c.collector.Clone()

	var (
		body       []byte
		statusCode int
		fetchErr   error
		start      time.Time
	)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		start = time.Now()
		c.Metrics.IncRequest(phase)
	})

	collector.OnResponse(func(r *colly.Response) {
		c.Metrics.ObserveDuration(time.Since(start))
		statusCode = r.StatusCode
		body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		if !start.IsZero() {
			c.Metrics.ObserveDuration(time.Since(start))
		}
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	visitErr := collector.Visit(rawURL)
	if fetchErr == nil && visitErr != nil {
		fetchErr = visitErr
	}

	if classified := classifyError(rawURL, fetchErr, statusCode); classified != nil {
		return nil, c.fail(classified)
	}

	slog.Debug("listing response",
		slog.String("url", rawURL),
		slog.Int("status", statusCode),
		slog.Int("bytes", len(body)),
	)
	return body, nil
}

func (c *Client) fail(err error) error {
	category := errorTypeLabel(err)
	c.Metrics.IncError(category)

	var netErr NetworkError
	if errors.As(err, &netErr) {
		slog.Error("request error",
			slog.String("url", netErr.URL),
			slog.String("category", category),
			slog.Int("status", netErr.StatusCode),
			slog.Any("error", netErr.Err),
		)
	}
	return err
}
