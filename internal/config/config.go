package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pageweight"

	// DefaultSamples is the number of pages crawled per template.
	// Pages of one template share their markup, so a few samples are
	// enough to find the weight the template carries.
	DefaultSamples = 3

	// MinSamples and MaxSamples bound the samples option.
	MinSamples = 1
	MaxSamples = 10

	// DefaultWorkers is the crawl concurrency.
	DefaultWorkers = 3

	// DefaultDelay is the pause each worker takes between two network
	// requests. The request rate on the audited host is roughly
	// workers/delay.
	DefaultDelay = 1 * time.Second

	// DefaultTimeout is the deadline of one page request.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of sitemaps audited at the same time.
	DefaultBatchSize = 2

	// DefaultTopN is the number of findings listed in the site summary.
	DefaultTopN = 20

	// DefaultUserAgent identifies the auditor in the target site's logs.
	DefaultUserAgent = "pageweight/1.0 (+https://github.com/nao1215/pageweight)"

	// DefaultMaxBodySize limits the HTML payload read per page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Config holds all configuration options for an audit run.
// It is populated from CLI flags and the optional configuration file and
// passed down explicitly; there is no global state.
type Config struct {
	// Targets are the sitemap URLs to audit. Each one is audited as a
	// separate site.
	Targets []string

	// URLList is a file with one page URL per line, used instead of a
	// sitemap.
	URLList string

	// Samples is the number of pages crawled per template (1-10).
	Samples int

	// Workers is the number of concurrent crawl workers.
	Workers int

	// Delay is the per-worker pause between network requests.
	// Cache hits do not wait.
	Delay time.Duration

	// CacheDir is the page cache directory. Empty disables the cache.
	CacheDir string

	// IncludeSecondary keeps secondary findings in the written report.
	IncludeSecondary bool

	// Timeout is the deadline of one page request, body included.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	// Larger pages are recorded as failed.
	MaxBodySize int64

	// TopN is the number of findings listed in the site summary.
	TopN int

	// BatchSize is the number of sitemaps audited concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path of the configuration file.
	// If empty, .pageweight is searched in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds the thresholds and per-site overrides loaded from
	// the configuration file.
	SiteConfigs *File

	// JSONReport writes the report as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport writes the report as GitHub Flavored Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output path of the report. Empty means stdout.
	ReportFile string

	// ExcelFile is the path of an additional .xlsx workbook.
	ExcelFile string

	// DBDir is the directory of the run history database.
	// Defaults to the XDG data directory (~/.local/share/pageweight on Linux).
	DBDir string

	// SaveToDB stores each report in the run history.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Samples:          DefaultSamples,
		Workers:          DefaultWorkers,
		Delay:            DefaultDelay,
		CacheDir:         XDGCacheDir(),
		IncludeSecondary: true,
		Timeout:          DefaultTimeout,
		UserAgent:        DefaultUserAgent,
		MaxBodySize:      DefaultMaxBodySize,
		TopN:             DefaultTopN,
		BatchSize:        DefaultBatchSize,
		DBDir:            XDGDataDir(),
		SaveToDB:         true,
	}
}

// Sources returns what the audits read their URLs from: the sitemap
// URLs, or the URL list file.
func (c *Config) Sources() []string {
	if c.URLList != "" {
		return []string{c.URLList}
	}
	return c.Targets
}

// Site returns the configuration file entry for a site, or an empty
// SiteConfig with default thresholds when no file was loaded.
func (c *Config) Site(site string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}.withDefaults()
	}
	return c.SiteConfigs.GetSiteConfig(site)
}

// XDGDataDir returns the XDG data directory for pageweight.
// On Linux: ~/.local/share/pageweight
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pageweight.
// On Linux: ~/.config/pageweight
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the default page cache directory.
// On Linux: ~/.cache/pageweight/pages
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName, "pages")
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 && c.URLList == "" {
		return ErrNoTarget
	}
	if len(c.Targets) > 0 && c.URLList != "" {
		return ErrConflictingSources
	}
	if c.Samples < MinSamples || c.Samples > MaxSamples {
		return ErrInvalidSamples
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.TopN < 0 {
		return ErrInvalidTopN
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
