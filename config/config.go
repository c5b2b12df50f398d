package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Source modes select how pages are retrieved from the listing endpoint.
const (
	ModeFull   = "full"
	ModeOffset = "offset"
)

// Offset bounds select which count ends offset-mode pagination.
const (
	BoundMatching = "matching"
	BoundTotal    = "total"
)

// Config holds catalog feed configuration.
type Config struct {
	BaseURL           string
	ItemsPath         string
	Mode              string // full or offset
	PageSize          int
	MaxPages          int
	Timeout           time.Duration
	RequestsPerSecond float64
	CountCacheSize    int
	OffsetBound       string // matching or total
	UserAgent         string
	PipelineWorkers   int
	BatchSize         int
	DedupeMaxSize     int
	OutputFile        string
	OutputFormat      string // csv, json, or dual
	MetricsAddr       string
	Verbose           bool
}

// DefaultConfig returns defaults for the public demo store.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://fakestoreapi.com",
		ItemsPath:         "/products",
		Mode:              ModeFull,
		PageSize:          8,
		MaxPages:          100,
		Timeout:           10 * time.Second,
		RequestsPerSecond: 0,
		CountCacheSize:    64,
		OffsetBound:       BoundMatching,
		UserAgent:         "go-catalog-feed/1.0",
		PipelineWorkers:   2,
		BatchSize:         64,
		DedupeMaxSize:     100000,
		OutputFile:        "output/items.csv",
		OutputFormat:      "csv",
		MetricsAddr:       "",
		Verbose:           false,
	}
}

// ItemsURL joins the base URL and items path.
func (c *Config) ItemsURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(c.ItemsPath, "/")
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Mode != ModeFull && c.Mode != ModeOffset {
		return fmt.Errorf("mode must be %s or %s", ModeFull, ModeOffset)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.OffsetBound != BoundMatching && c.OffsetBound != BoundTotal {
		return fmt.Errorf("offset bound must be %s or %s", BoundMatching, BoundTotal)
	}
	if c.CountCacheSize <= 0 {
		return fmt.Errorf("count cache size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineWorkers <= 0 {
		return fmt.Errorf("pipeline workers must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}

	return nil
}
