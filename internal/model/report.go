package model

import (
	"sort"
	"time"
)

// Scope tells how widely a shared finding repeats across the audited pages.
type Scope string

const (
	// ScopeSiteWide means the element appears on every crawled page.
	ScopeSiteWide Scope = "site-wide"

	// ScopeTemplateWide means the element appears on every page of one template.
	ScopeTemplateWide Scope = "template-wide"

	// ScopeMultiPage means the element appears on several, but not all, pages.
	ScopeMultiPage Scope = "multi-page"

	// ScopePageSpecific means the element appears on a single page.
	ScopePageSpecific Scope = "page-specific"
)

// Settings is a snapshot of the options an audit ran with.
type Settings struct {
	Samples          int     `json:"samples"`
	Workers          int     `json:"workers"`
	DelaySeconds     float64 `json:"delay_seconds"`
	CacheDir         string  `json:"cache_dir"`
	IncludeSecondary bool    `json:"include_secondary"`
}

// PageSummary describes one crawled page inside a template report.
type PageSummary struct {
	URL            string    `json:"url"`
	StatusCode     int       `json:"status_code"`
	Source         Source    `json:"source,omitempty"`
	Error          string    `json:"error,omitempty"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
	TotalBytes     int       `json:"total_bytes"`
	FlaggedBytes   int       `json:"flagged_bytes"`
	FlaggedPercent float64   `json:"flagged_percent"`
	FindingCount   int       `json:"finding_count"`
}

// Failed reports whether the page produced no analysis.
func (p PageSummary) Failed() bool {
	return p.Error != ""
}

// TemplateStats summarizes the findings of one template.
type TemplateStats struct {
	// TotalBytes is the sum of top-level finding sizes.
	TotalBytes int `json:"total_bytes"`

	// Count is the number of findings, subcomponents included.
	Count int `json:"count"`

	// MaxBytes is the largest finding size.
	MaxBytes int `json:"max_bytes"`

	// MedianBytes is the median finding size.
	MedianBytes int `json:"median_bytes"`
}

// TemplateReport is the per-template audit result.
type TemplateReport struct {
	// Name is the rendered signature, e.g. "/p/{id}".
	Name string `json:"name"`

	// Signature is the template signature.
	Signature TemplateSignature `json:"signature"`

	// MemberCount is the number of sitemap URLs in the template.
	MemberCount int `json:"member_count"`

	// Pages are the sampled pages, in sample order.
	Pages []PageSummary `json:"pages"`

	// Findings are sorted with SortFindings.
	Findings []Finding `json:"findings"`

	// Stats summarizes Findings.
	Stats TemplateStats `json:"stats"`
}

// ComputeStats fills Stats from Findings.
func (tr *TemplateReport) ComputeStats() {
	tr.Stats = ComputeStats(tr.Findings)
}

// ComputeStats summarizes a slice of findings.
func ComputeStats(findings []Finding) TemplateStats {
	stats := TemplateStats{Count: len(findings)}
	if len(findings) == 0 {
		return stats
	}

	sizes := make([]int, 0, len(findings))
	for _, f := range findings {
		if !f.Subcomponent {
			stats.TotalBytes += f.SizeBytes
		}
		if f.SizeBytes > stats.MaxBytes {
			stats.MaxBytes = f.SizeBytes
		}
		sizes = append(sizes, f.SizeBytes)
	}
	sort.Ints(sizes)

	mid := len(sizes) / 2
	if len(sizes)%2 == 1 {
		stats.MedianBytes = sizes[mid]
	} else {
		stats.MedianBytes = (sizes[mid-1] + sizes[mid]) / 2
	}
	return stats
}

// SharedFinding groups the same element found on several pages.
type SharedFinding struct {
	// Finding is the first occurrence, with SizeBytes set to the largest
	// occurrence.
	Finding Finding `json:"finding"`

	// Pages are the URLs the element was found on, sorted.
	Pages []string `json:"pages"`

	// Templates are the template names the element was found in, sorted.
	Templates []string `json:"templates"`

	// Scope is how widely the element repeats.
	Scope Scope `json:"scope"`
}

// SiteSummary is the whole-site part of the report.
type SiteSummary struct {
	TemplateCount   int              `json:"template_count"`
	URLCount        int              `json:"url_count"`
	PagesCrawled    int              `json:"pages_crawled"`
	PagesFailed     int              `json:"pages_failed"`
	PagesFromCache  int              `json:"pages_from_cache"`
	TotalHTMLBytes  int              `json:"total_html_bytes"`
	FlaggedBytes    int              `json:"flagged_bytes"`
	PrimaryBytes    int              `json:"primary_bytes"`
	SecondaryBytes  int              `json:"secondary_bytes"`
	BytesByCategory map[Category]int `json:"bytes_by_category"`
	TopFindings     []Finding        `json:"top_findings"`
	SharedFindings  []SharedFinding  `json:"shared_findings"`
}

// Report is the terminal artifact of an audit, handed to report writers
// and the run history.
type Report struct {
	// RunID uniquely identifies the audit run.
	RunID string `json:"run_id"`

	// Site is the scheme and host of the audited site.
	Site string `json:"site"`

	// Source is the sitemap URL or URL list the audit started from.
	Source string `json:"source"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Settings are the options the run used.
	Settings Settings `json:"settings"`

	// Templates maps template names to their reports.
	Templates map[string]*TemplateReport `json:"templates"`

	// Summary is the whole-site summary.
	Summary SiteSummary `json:"summary"`

	// Cancelled is set when the run was interrupted; the report then holds
	// partial results.
	Cancelled bool `json:"cancelled,omitempty"`
}

// NewReport creates an empty report.
func NewReport(runID, site, source string) *Report {
	return &Report{
		RunID:     runID,
		Site:      site,
		Source:    source,
		StartedAt: time.Now(),
		Templates: make(map[string]*TemplateReport),
		Summary: SiteSummary{
			BytesByCategory: make(map[Category]int),
		},
	}
}

// TemplateNames returns the template names sorted by total flagged bytes
// descending, then by name.
func (r *Report) TemplateNames() []string {
	names := make([]string, 0, len(r.Templates))
	for name := range r.Templates {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := r.Templates[names[i]], r.Templates[names[j]]
		if a.Stats.TotalBytes != b.Stats.TotalBytes {
			return a.Stats.TotalBytes > b.Stats.TotalBytes
		}
		return names[i] < names[j]
	})
	return names
}

// FailedPages returns every failed page across templates, sorted by URL.
func (r *Report) FailedPages() []PageSummary {
	failed := make([]PageSummary, 0)
	for _, tr := range r.Templates {
		for _, p := range tr.Pages {
			if p.Failed() {
				failed = append(failed, p)
			}
		}
	}
	sort.Slice(failed, func(i, j int) bool {
		return failed[i].URL < failed[j].URL
	})
	return failed
}

// WithoutSecondary returns a copy of the report with secondary findings
// removed from templates, top findings and shared findings. Template stats
// are recomputed; site byte totals are left untouched so they still
// describe the whole payload.
func (r *Report) WithoutSecondary() *Report {
	out := *r
	out.Settings.IncludeSecondary = false
	out.Templates = make(map[string]*TemplateReport, len(r.Templates))
	for name, tr := range r.Templates {
		c := *tr
		c.Findings = filterPrimary(tr.Findings)
		c.ComputeStats()
		out.Templates[name] = &c
	}

	out.Summary.TopFindings = filterPrimary(r.Summary.TopFindings)
	shared := make([]SharedFinding, 0, len(r.Summary.SharedFindings))
	for _, sf := range r.Summary.SharedFindings {
		if !sf.Finding.IsSecondary() {
			shared = append(shared, sf)
		}
	}
	out.Summary.SharedFindings = shared
	return &out
}

func filterPrimary(findings []Finding) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if !f.IsSecondary() {
			out = append(out, f)
		}
	}
	return out
}
