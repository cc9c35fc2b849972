package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pageweight/internal/analyzer"
	"github.com/nao1215/pageweight/internal/template"
)

// TestNewConfig documents the defaults; a failing case means a default
// changed.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Samples is 3", func(t *testing.T) {
		t.Parallel()
		if cfg.Samples != 3 {
			t.Errorf("expected Samples to be 3, got %d", cfg.Samples)
		}
	})

	t.Run("default Workers is 3", func(t *testing.T) {
		t.Parallel()
		if cfg.Workers != 3 {
			t.Errorf("expected Workers to be 3, got %d", cfg.Workers)
		}
	})

	t.Run("default Delay is 1 second", func(t *testing.T) {
		t.Parallel()
		if cfg.Delay != time.Second {
			t.Errorf("expected Delay to be 1s, got %v", cfg.Delay)
		}
	})

	t.Run("secondary findings are included by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.IncludeSecondary {
			t.Error("expected IncludeSecondary to be true")
		}
	})

	t.Run("cache and history live under XDG directories", func(t *testing.T) {
		t.Parallel()
		if cfg.CacheDir != XDGCacheDir() {
			t.Errorf("expected CacheDir %q, got %q", XDGCacheDir(), cfg.CacheDir)
		}
		if cfg.DBDir != XDGDataDir() || !cfg.SaveToDB {
			t.Errorf("expected history in %q, got %q (save=%v)", XDGDataDir(), cfg.DBDir, cfg.SaveToDB)
		}
	})

	t.Run("defaults validate once a target is set", func(t *testing.T) {
		t.Parallel()
		c := NewConfig()
		c.Targets = []string{"https://example.com/sitemap.xml"}
		if err := c.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		c := NewConfig()
		c.Targets = []string{"https://example.com/sitemap.xml"}
		return c
	}

	tests := []struct {
		name   string
		modify func(c *Config)
		want   error
	}{
		{name: "valid config", modify: func(*Config) {}, want: nil},
		{name: "url list instead of sitemap", modify: func(c *Config) { c.Targets = nil; c.URLList = "urls.txt" }, want: nil},
		{name: "zero delay", modify: func(c *Config) { c.Delay = 0 }, want: nil},
		{name: "ten samples", modify: func(c *Config) { c.Samples = 10 }, want: nil},
		{name: "no target", modify: func(c *Config) { c.Targets = nil }, want: ErrNoTarget},
		{name: "sitemap and url list", modify: func(c *Config) { c.URLList = "urls.txt" }, want: ErrConflictingSources},
		{name: "zero samples", modify: func(c *Config) { c.Samples = 0 }, want: ErrInvalidSamples},
		{name: "eleven samples", modify: func(c *Config) { c.Samples = 11 }, want: ErrInvalidSamples},
		{name: "zero workers", modify: func(c *Config) { c.Workers = 0 }, want: ErrInvalidWorkers},
		{name: "negative delay", modify: func(c *Config) { c.Delay = -time.Second }, want: ErrInvalidDelay},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, want: ErrInvalidTimeout},
		{name: "zero batch size", modify: func(c *Config) { c.BatchSize = 0 }, want: ErrInvalidBatchSize},
		{name: "negative top", modify: func(c *Config) { c.TopN = -1 }, want: ErrInvalidTopN},
		{name: "json and markdown", modify: func(c *Config) { c.JSONReport = true; c.MarkdownReport = true }, want: ErrConflictingReportFormats},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigSources(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Targets = []string{"https://a.example/sitemap.xml", "https://b.example/sitemap.xml"}
	if got := cfg.Sources(); len(got) != 2 {
		t.Errorf("expected 2 sources, got %v", got)
	}

	cfg.Targets = nil
	cfg.URLList = "urls.txt"
	if got := cfg.Sources(); len(got) != 1 || got[0] != "urls.txt" {
		t.Errorf("expected the URL list, got %v", got)
	}
}

func TestGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns built-in defaults for unknown sites", func(t *testing.T) {
		t.Parallel()

		file := &File{}
		cfg := file.GetSiteConfig("https://unknown.example/")
		if cfg.Thresholds != analyzer.DefaultThresholds() {
			t.Errorf("expected default thresholds, got %+v", cfg.Thresholds)
		}
		if cfg.Classifier != template.DefaultClassifierOptions() {
			t.Errorf("expected default classifier options, got %+v", cfg.Classifier)
		}
	})

	t.Run("site values override file defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				Cookie:         "consent=1",
				Headers:        map[string]string{"Accept-Language": "en"},
				IgnorePatterns: []string{"/default/*"},
				Thresholds:     analyzer.Thresholds{InlineScript: 1000, InlineStyle: 800},
			},
			Sites: map[string]SiteConfig{
				"www.example.com": {
					Samples:        5,
					Headers:        map[string]string{"X-Debug": "1"},
					IgnorePatterns: []string{"/admin/*"},
					Thresholds:     analyzer.Thresholds{InlineScript: 2000},
					Classifier:     template.ClassifierOptions{PromoteThreshold: 4},
				},
			},
		}

		cfg := file.GetSiteConfig("https://www.example.com/sitemap.xml")
		if cfg.Samples != 5 {
			t.Errorf("expected samples 5, got %d", cfg.Samples)
		}
		if cfg.Cookie != "consent=1" {
			t.Errorf("expected default cookie, got %q", cfg.Cookie)
		}
		if cfg.Headers["Accept-Language"] != "en" || cfg.Headers["X-Debug"] != "1" {
			t.Errorf("expected merged headers, got %v", cfg.Headers)
		}
		if len(cfg.IgnorePatterns) != 1 || cfg.IgnorePatterns[0] != "/admin/*" {
			t.Errorf("expected site ignore patterns, got %v", cfg.IgnorePatterns)
		}
		if cfg.Thresholds.InlineScript != 2000 || cfg.Thresholds.InlineStyle != 800 {
			t.Errorf("expected layered thresholds, got %+v", cfg.Thresholds)
		}
		if cfg.Thresholds.InlineSVG != analyzer.DefaultThresholds().InlineSVG {
			t.Errorf("expected built-in threshold for unset fields, got %d", cfg.Thresholds.InlineSVG)
		}
		if cfg.Classifier.PromoteThreshold != 4 || cfg.Classifier.MinSlugLength != template.DefaultMinSlugLength {
			t.Errorf("unexpected classifier options %+v", cfg.Classifier)
		}
		if _, ok := file.Defaults.Headers["X-Debug"]; ok {
			t.Error("expected the file defaults to stay untouched")
		}
	})

	t.Run("www prefix is optional", func(t *testing.T) {
		t.Parallel()

		file := &File{Sites: map[string]SiteConfig{"example.com": {Samples: 7}}}
		for _, site := range []string{"example.com", "www.example.com", "https://WWW.example.com/"} {
			if got := file.GetSiteConfig(site).Samples; got != 7 {
				t.Errorf("%s: expected samples 7, got %d", site, got)
			}
		}
	})
}

func TestSiteConfigRequestHeaders(t *testing.T) {
	t.Parallel()

	if h := (SiteConfig{}).RequestHeaders(); h != nil {
		t.Errorf("expected nil headers, got %v", h)
	}

	sc := SiteConfig{Cookie: "session=abc", Headers: map[string]string{"X-Custom": "value"}}
	h := sc.RequestHeaders()
	if h["Cookie"] != "session=abc" || h["X-Custom"] != "value" {
		t.Errorf("unexpected headers %v", h)
	}
	if _, ok := sc.Headers["Cookie"]; ok {
		t.Error("expected the configured headers to stay untouched")
	}
}

func TestConfigSite(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if got := cfg.Site("https://example.com").Thresholds; got != analyzer.DefaultThresholds() {
		t.Errorf("expected default thresholds without a file, got %+v", got)
	}

	cfg.SiteConfigs = &File{Defaults: SiteConfig{Thresholds: analyzer.Thresholds{DataURI: 100}}}
	if got := cfg.Site("https://example.com").Thresholds.DataURI; got != 100 {
		t.Errorf("expected file threshold 100, got %d", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), ".pageweight")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		return path
	}

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.pageweight")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := write(t, `defaults:
  samples: 2
  thresholds:
    inline_script: 1500
    dom_subtree_percent: 2.5
  classifier:
    promote_threshold: 3
sites:
  www.example.com:
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
    ignorePatterns:
      - "/admin/*"
    followPatterns:
      - "/blog/*"
`)
		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.Samples != 2 {
			t.Errorf("expected default samples 2, got %d", cfg.Defaults.Samples)
		}
		if cfg.Defaults.Thresholds.InlineScript != 1500 || cfg.Defaults.Thresholds.DOMSubtreePercent != 2.5 {
			t.Errorf("unexpected thresholds %+v", cfg.Defaults.Thresholds)
		}
		if cfg.Defaults.Classifier.PromoteThreshold != 3 {
			t.Errorf("expected promote threshold 3, got %d", cfg.Defaults.Classifier.PromoteThreshold)
		}

		site, ok := cfg.Sites["www.example.com"]
		if !ok {
			t.Fatal("expected www.example.com in sites")
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header")
		}
		if len(site.IgnorePatterns) != 1 || len(site.FollowPatterns) != 1 {
			t.Errorf("unexpected patterns %v %v", site.IgnorePatterns, site.FollowPatterns)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(write(t, `invalid: yaml: content: [}`)); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("rejects out of range samples", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(write(t, "sites:\n  example.com:\n    samples: 20\n"))
		if !errors.Is(err, ErrInvalidSamples) {
			t.Errorf("expected ErrInvalidSamples, got %v", err)
		}
		if err != nil && !strings.Contains(err.Error(), "example.com") {
			t.Errorf("expected the site name in the error, got %v", err)
		}
	})

	t.Run("rejects malformed patterns", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(write(t, "defaults:\n  ignorePatterns:\n    - \"/[a-\"\n"))
		if !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("expected ErrInvalidPattern, got %v", err)
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile(write(t, "defaults:\n  samples: 1\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("finds the file in the current directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		t.Chdir(dir)

		if result := FindConfigFile(""); result != filepath.Join(dir, DefaultConfigFile) {
			t.Errorf("expected the cwd config, got %q", result)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
		"cache":  XDGCacheDir(),
	} {
		if !strings.Contains(dir, AppName) {
			t.Errorf("expected the %s dir to contain %q, got %q", name, AppName, dir)
		}
	}
}
