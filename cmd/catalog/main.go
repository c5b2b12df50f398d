package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-catalog-feed/catalog"
	"github.com/aluiziolira/go-catalog-feed/config"
	"github.com/aluiziolira/go-catalog-feed/coordinator"
	"github.com/aluiziolira/go-catalog-feed/models"
	"github.com/aluiziolira/go-catalog-feed/pipeline"
)

func main() {
	defaultCfg := config.DefaultConfig()
	baseURLDefault := defaultCfg.BaseURL
	if value, ok := config.EnvString("CATALOG_BASE_URL"); ok {
		baseURLDefault = value
	}
	pageSizeDefault := defaultCfg.PageSize
	if value, ok, err := config.EnvInt("CATALOG_PAGE_SIZE"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid CATALOG_PAGE_SIZE: %v\n", err)
		os.Exit(1)
	} else if ok {
		pageSizeDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("CATALOG_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("CATALOG_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	baseURL := flag.String("base-url", baseURLDefault, "Listing endpoint base URL")
	mode := flag.String("mode", defaultCfg.Mode, "Page source: full or offset")
	offsetBound := flag.String("offset-bound", defaultCfg.OffsetBound, "Offset mode page bound: matching or total")
	pageSize := flag.Int("page-size", pageSizeDefault, "Items per page")
	category := flag.String("category", "", "Only items in this category")
	minPrice := flag.String("min-price", "", "Minimum price (inclusive)")
	maxPrice := flag.String("max-price", "", "Maximum price (inclusive)")
	minRating := flag.Float64("min-rating", 0, "Minimum rating (inclusive)")
	sortBy := flag.String("sort", string(models.SortPriceAsc), "Ordering: price-asc, price-desc or rating-desc")
	maxPages := flag.Int("max-pages", defaultCfg.MaxPages, "Stop after this many pages")
	timeout := flag.Duration("timeout", defaultCfg.Timeout, "Per-request timeout")
	rps := flag.Float64("rps", defaultCfg.RequestsPerSecond, "Request rate limit (0 disables)")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.BaseURL = *baseURL
	cfg.Mode = strings.ToLower(*mode)
	cfg.OffsetBound = strings.ToLower(*offsetBound)
	cfg.PageSize = *pageSize
	cfg.MaxPages = *maxPages
	cfg.Timeout = *timeout
	cfg.RequestsPerSecond = *rps
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	filters, err := buildFilters(*category, *minPrice, *maxPrice, *minRating, *sortBy)
	if err != nil {
		slog.Error("invalid filters", slog.Any("error", err))
		os.Exit(1)
	}

	client, err := catalog.NewClient(cfg)
	if err != nil {
		slog.Error("initialising client", slog.Any("error", err))
		os.Exit(1)
	}
	source, err := catalog.NewSource(cfg, client)
	if err != nil {
		slog.Error("initialising source", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(client.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	coord := coordinator.New(ctx, source, coordinator.WithMetrics(coordinator.NewMetrics(client.Metrics.Registry)))

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.PipelineWorkers)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	slog.Info("starting catalog feed",
		slog.String("url", cfg.ItemsURL()),
		slog.String("mode", cfg.Mode),
		slog.Int("page_size", cfg.PageSize),
		slog.String("filters", filters.Key()),
	)

	startTime := time.Now()
	final, scrollErr := scroll(ctx, coord, filters, cfg.MaxPages, func(page models.PageResult) error {
		return p.Process(page.Items...)
	})
	coord.Close()

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(final, time.Since(startTime), cfg.OutputFile, p.GetMetrics())

	if scrollErr != nil {
		slog.Error("catalog feed stopped", slog.Any("error", scrollErr))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func printSummary(final models.Snapshot, duration time.Duration, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Catalog feed complete")

	processed := int64(0)
	if value, ok := metrics["processed_items"].(int64); ok {
		processed = value
	}
	total := 0
	if n := len(final.Pages); n > 0 {
		total = final.Pages[n-1].Total
	}

	fmt.Printf("  Status:        %s\n", final.Status)
	fmt.Printf("  Pages loaded:  %d\n", len(final.Pages))
	fmt.Printf("  Items shown:   %d of %d\n", len(final.Items()), total)
	fmt.Printf("  Items written: %d\n", processed)
	if categories := final.Categories(); len(categories) > 0 {
		fmt.Printf("  Categories:    %s\n", strings.Join(categories, ", "))
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	if final.Err != nil {
		fmt.Printf("  Error:         %v\n", final.Err)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
