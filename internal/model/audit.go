package model

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Audit is the state shared by the steps of one audit run.
// Each step reads what earlier steps produced and adds its own output.
type Audit struct {
	// Source is the sitemap URL or URL list the audit starts from.
	Source string

	// URLs are the page URLs read from the source, in discovery order.
	URLs []string

	// Templates are the URL templates in first-discovery order.
	Templates []*Template

	// Samples maps template signature keys to the sampled URLs.
	Samples map[string][]string

	// Results maps sampled URLs to their crawl results.
	Results map[string]*CrawlResult

	// Analyses maps successfully crawled URLs to their analyses.
	Analyses map[string]*PageAnalysis

	// Report is the audit report. Its metadata is set when the audit is
	// created; the aggregate step fills in the rest.
	Report *Report

	// PerformedSteps lists the names of the steps that ran.
	PerformedSteps []string

	// Error is the error of the step that stopped the audit, if any.
	Error error
}

// NewAudit creates the state for an audit of source with a fresh run ID.
func NewAudit(source string) *Audit {
	return &Audit{
		Source:   source,
		Samples:  make(map[string][]string),
		Results:  make(map[string]*CrawlResult),
		Analyses: make(map[string]*PageAnalysis),
		Report:   NewReport(uuid.NewString(), SiteOf(source), source),
	}
}

// SampledURLs returns every sampled URL in template order without
// duplicates.
func (a *Audit) SampledURLs() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, t := range a.Templates {
		for _, u := range a.Samples[t.Signature.Key()] {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

// Elapsed returns the run duration, or the time since start while the
// run is in progress.
func (a *Audit) Elapsed() time.Duration {
	if a.Report.FinishedAt.IsZero() {
		return time.Since(a.Report.StartedAt)
	}
	return a.Report.FinishedAt.Sub(a.Report.StartedAt)
}

// SiteOf returns the scheme and host of rawURL, e.g.
// "https://example.com". Values that are not absolute URLs, such as a
// URL list file name, are returned unchanged.
func SiteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
