package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero page size",
			mutate: func(cfg *Config) {
				cfg.PageSize = 0
			},
			wantErr: "page size",
		},
		{
			name: "zero dedupe size",
			mutate: func(cfg *Config) {
				cfg.DedupeMaxSize = 0
			},
			wantErr: "dedupe",
		},
		{
			name: "unknown mode",
			mutate: func(cfg *Config) {
				cfg.Mode = "cursor"
			},
			wantErr: "mode",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "negative rate",
			mutate: func(cfg *Config) {
				cfg.RequestsPerSecond = -1
			},
			wantErr: "requests per second",
		},
		{
			name: "unknown offset bound",
			mutate: func(cfg *Config) {
				cfg.OffsetBound = "cursor"
			},
			wantErr: "offset bound",
		},
		{
			name: "bad format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestItemsURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://example.test/"
	cfg.ItemsPath = "products"
	if got := cfg.ItemsURL(); got != "http://example.test/products" {
		t.Fatalf("ItemsURL = %q", got)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CATALOG_TEST_INT", " 12 ")
	t.Setenv("CATALOG_TEST_BAD", "x")
	t.Setenv("CATALOG_TEST_EMPTY", "  ")

	if v, ok, err := EnvInt("CATALOG_TEST_INT"); err != nil || !ok || v != 12 {
		t.Fatalf("EnvInt = %d %v %v", v, ok, err)
	}
	if _, _, err := EnvInt("CATALOG_TEST_BAD"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, ok := EnvString("CATALOG_TEST_EMPTY"); ok {
		t.Fatalf("blank value should be treated as unset")
	}
	if _, ok, err := EnvInt("CATALOG_TEST_MISSING"); ok || err != nil {
		t.Fatalf("missing key should be unset without error")
	}
}
