package aggregate

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/nao1215/pageweight/internal/model"
)

// DefaultTopN is the number of site-wide top findings kept in the summary.
const DefaultTopN = 20

// Aggregator collects crawl results and analyses per template.
// It is safe for concurrent use.
type Aggregator struct {
	// topN is the length of the site-wide top findings list.
	topN int

	// logger is used for aggregation logging.
	logger *slog.Logger

	// entries are the templates in registration order.
	entries []*entry

	// index maps signature keys to entries.
	index map[string]*entry

	// mutex protects entries and index.
	mutex sync.Mutex
}

// entry is the state of one template.
type entry struct {
	template *model.Template
	samples  []string
	pages    map[string]page
}

// page is one added page.
type page struct {
	result   *model.CrawlResult
	analysis *model.PageAnalysis
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTopN sets the number of site-wide top findings. Values below 1 are
// ignored.
func WithTopN(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topN = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// New creates an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		topN:   DefaultTopN,
		logger: slog.Default(),
		index:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddTemplate registers a template and its samples. Pages of the template
// are reported in sample order. A template registered without pages still
// appears in the report.
func (a *Aggregator) AddTemplate(t *model.Template, samples []string) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	e := a.entryFor(t)
	e.samples = append([]string(nil), samples...)
}

// Add records one crawled page. The analysis is nil when the fetch failed.
func (a *Aggregator) Add(t *model.Template, result *model.CrawlResult, analysis *model.PageAnalysis) {
	if t == nil || result == nil {
		return
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.entryFor(t).pages[result.URL] = page{result: result, analysis: analysis}
}

func (a *Aggregator) entryFor(t *model.Template) *entry {
	key := t.Signature.Key()
	if e, ok := a.index[key]; ok {
		return e
	}
	e := &entry{template: t, pages: make(map[string]page)}
	a.index[key] = e
	a.entries = append(a.entries, e)
	return e
}

// Build fills r with the template reports and the site summary, and
// returns it.
func (a *Aggregator) Build(r *model.Report) *model.Report {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if r.Templates == nil {
		r.Templates = make(map[string]*model.TemplateReport, len(a.entries))
	}

	summary := model.SiteSummary{
		TemplateCount:   len(a.entries),
		BytesByCategory: make(map[model.Category]int),
	}
	var all []model.Finding
	shared := newSharedIndex()

	for _, e := range a.entries {
		name := e.template.Name()
		if _, taken := r.Templates[name]; taken {
			name = e.template.Signature.Key()
		}

		tr := &model.TemplateReport{
			Name:        name,
			Signature:   e.template.Signature,
			MemberCount: e.template.Size(),
			Pages:       make([]model.PageSummary, 0, len(e.pages)),
			Findings:    make([]model.Finding, 0),
		}
		summary.URLCount += e.template.Size()

		for _, u := range e.pageOrder() {
			p := e.pages[u]
			ps := summarize(p)
			tr.Pages = append(tr.Pages, ps)

			summary.PagesCrawled++
			if ps.Failed() {
				summary.PagesFailed++
			}
			if p.result.Source == model.SourceCache {
				summary.PagesFromCache++
			}
			summary.TotalHTMLBytes += p.result.Size()

			if ps.Failed() || p.analysis == nil {
				continue
			}
			shared.addPage(name, u)
			for _, f := range p.analysis.Findings {
				tr.Findings = append(tr.Findings, f)
				shared.addFinding(name, f)
				if f.Subcomponent {
					continue
				}
				all = append(all, f)
				summary.FlaggedBytes += f.SizeBytes
				summary.BytesByCategory[f.Category] += f.SizeBytes
				if f.IsSecondary() {
					summary.SecondaryBytes += f.SizeBytes
				} else {
					summary.PrimaryBytes += f.SizeBytes
				}
			}
		}

		model.SortFindings(tr.Findings)
		tr.ComputeStats()
		r.Templates[name] = tr
	}

	model.SortFindings(all)
	if len(all) > a.topN {
		all = all[:a.topN]
	}
	summary.TopFindings = all
	summary.SharedFindings = shared.build()
	r.Summary = summary

	a.logger.Debug("report built",
		"templates", summary.TemplateCount,
		"pages", summary.PagesCrawled,
		"failed", summary.PagesFailed,
		"flagged_bytes", summary.FlaggedBytes,
	)
	return r
}

// pageOrder returns the added URLs in sample order, followed by URLs that
// were not registered as samples, sorted.
func (e *entry) pageOrder() []string {
	order := make([]string, 0, len(e.pages))
	listed := make(map[string]struct{}, len(e.samples))
	for _, u := range e.samples {
		if _, ok := e.pages[u]; ok {
			if _, dup := listed[u]; !dup {
				order = append(order, u)
				listed[u] = struct{}{}
			}
		}
	}

	var rest []string
	for u := range e.pages {
		if _, ok := listed[u]; !ok {
			rest = append(rest, u)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// summarize builds the page summary of one added page.
func summarize(p page) model.PageSummary {
	ps := model.PageSummary{
		URL:        p.result.URL,
		StatusCode: p.result.StatusCode,
		Source:     p.result.Source,
		Error:      p.result.Error,
		ErrorKind:  p.result.ErrorKind,
		TotalBytes: p.result.Size(),
	}
	if ps.Error != "" {
		return ps
	}
	if p.analysis == nil {
		ps.Error = "page was not analyzed"
		ps.ErrorKind = model.ErrorKindCancelled
		return ps
	}
	if p.analysis.ParseError != "" {
		ps.Error = p.analysis.ParseError
		ps.ErrorKind = model.ErrorKindParse
		return ps
	}

	ps.FlaggedBytes = p.analysis.FlaggedBytes()
	ps.FlaggedPercent = p.analysis.FlaggedPercent()
	ps.FindingCount = len(p.analysis.Findings)
	return ps
}
