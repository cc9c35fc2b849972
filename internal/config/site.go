package config

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/nao1215/pageweight/internal/analyzer"
	"github.com/nao1215/pageweight/internal/template"
)

// ErrInvalidPattern is returned when an ignore or follow pattern is not a
// valid glob.
var ErrInvalidPattern = errors.New("invalid URL pattern")

// SiteConfig holds the audit settings for one site.
// Zero values mean "inherit": from the file defaults, then from the
// built-in defaults.
type SiteConfig struct {
	// Cookie is sent with every page request, e.g. to audit a logged-in
	// variant or to get past a consent wall.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Samples overrides the number of pages crawled per template.
	Samples int `yaml:"samples,omitempty"`

	// IgnorePatterns are URL path patterns left out of the audit.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict the audit to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// Thresholds override the analyzer's size thresholds.
	Thresholds analyzer.Thresholds `yaml:"thresholds,omitempty"`

	// Classifier tunes template detection.
	Classifier template.ClassifierOptions `yaml:"classifier,omitempty"`
}

// RequestHeaders returns the headers to send, with the cookie folded in.
func (s SiteConfig) RequestHeaders() map[string]string {
	if len(s.Headers) == 0 && s.Cookie == "" {
		return nil
	}
	headers := make(map[string]string, len(s.Headers)+1)
	maps.Copy(headers, s.Headers)
	if s.Cookie != "" {
		headers["Cookie"] = s.Cookie
	}
	return headers
}

// withDefaults fills thresholds and classifier options left at zero.
func (s SiteConfig) withDefaults() SiteConfig {
	s.Thresholds = s.Thresholds.Merge(analyzer.DefaultThresholds())
	def := template.DefaultClassifierOptions()
	if s.Classifier.MinSlugLength == 0 {
		s.Classifier.MinSlugLength = def.MinSlugLength
	}
	if s.Classifier.PromoteThreshold == 0 {
		s.Classifier.PromoteThreshold = def.PromoteThreshold
	}
	return s
}

// File represents the structure of the .pageweight configuration file.
type File struct {
	// Sites maps host names (e.g. "www.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to all sites unless a site overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a site. The site may be
// given as a host or as any URL on it; a leading "www." is optional on
// both sides.
func (cf *File) GetSiteConfig(site string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	if siteConfig, ok := cf.lookup(site); ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.Samples != 0 {
			result.Samples = siteConfig.Samples
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			maps.Copy(result.Headers, siteConfig.Headers)
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = siteConfig.IgnorePatterns
		}
		if len(siteConfig.FollowPatterns) > 0 {
			result.FollowPatterns = siteConfig.FollowPatterns
		}
		result.Thresholds = siteConfig.Thresholds.Merge(result.Thresholds)
		if siteConfig.Classifier.MinSlugLength != 0 {
			result.Classifier.MinSlugLength = siteConfig.Classifier.MinSlugLength
		}
		if siteConfig.Classifier.PromoteThreshold != 0 {
			result.Classifier.PromoteThreshold = siteConfig.Classifier.PromoteThreshold
		}
	}

	return result.withDefaults()
}

func (cf *File) lookup(site string) (SiteConfig, bool) {
	host := hostOf(site)
	for _, candidate := range []string{host, strings.TrimPrefix(host, "www."), "www." + host} {
		if sc, ok := cf.Sites[candidate]; ok {
			return sc, true
		}
	}
	return SiteConfig{}, false
}

// hostOf extracts the lower-cased host of a URL, or returns a bare host
// unchanged.
func hostOf(site string) string {
	if strings.Contains(site, "://") {
		if u, err := url.Parse(site); err == nil {
			return strings.ToLower(u.Hostname())
		}
	}
	return strings.ToLower(site)
}

// validate checks every pattern and sample count in the file.
func (cf *File) validate() error {
	check := func(name string, sc SiteConfig) error {
		if sc.Samples != 0 && (sc.Samples < MinSamples || sc.Samples > MaxSamples) {
			return fmt.Errorf("%s: %w", name, ErrInvalidSamples)
		}
		for _, p := range append(append([]string{}, sc.IgnorePatterns...), sc.FollowPatterns...) {
			if _, err := filepath.Match(p, "/"); err != nil {
				return fmt.Errorf("%s: %w: %q", name, ErrInvalidPattern, p)
			}
		}
		return nil
	}

	if err := check("defaults", cf.Defaults); err != nil {
		return err
	}
	for host, sc := range cf.Sites {
		if err := check(host, sc); err != nil {
			return err
		}
	}
	return nil
}
