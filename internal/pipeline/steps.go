package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pageweight/internal/aggregate"
	"github.com/nao1215/pageweight/internal/analyzer"
	"github.com/nao1215/pageweight/internal/crawler"
	"github.com/nao1215/pageweight/internal/model"
	"github.com/nao1215/pageweight/internal/sitemap"
	"github.com/nao1215/pageweight/internal/template"
)

// ErrNoURLs is returned when the audit source yields no usable URL.
var ErrNoURLs = errors.New("no URLs to audit")

// SourceStep loads the page URLs of the audit from a sitemap or a URL list.
type SourceStep struct {
	// source reads the URLs.
	source sitemap.Source

	// logger for structured logging.
	logger *slog.Logger
}

// NewSourceStep creates a source step reading URLs from source.
func NewSourceStep(source sitemap.Source, logger *slog.Logger) *SourceStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceStep{source: source, logger: logger}
}

// Name returns the step name.
func (s *SourceStep) Name() string {
	return "source"
}

// Do executes the source step.
func (s *SourceStep) Do(ctx context.Context, audit *model.Audit) error {
	urls, err := s.source.FetchAll(ctx, audit.Source)
	if err != nil {
		return fmt.Errorf("failed to load URLs from %s: %w", audit.Source, err)
	}
	audit.URLs = urls

	// A URL list file names no site; use the first page instead.
	if audit.Report.Site == audit.Source && len(urls) > 0 {
		audit.Report.Site = model.SiteOf(urls[0])
	}

	s.logger.Info("URLs loaded", "source", audit.Source, "urls", len(urls))
	return nil
}

// GroupStep groups the URLs into templates and selects the samples.
type GroupStep struct {
	// samples is the number of pages sampled per template.
	samples int

	// grouperOptions configure the grouper of each audit.
	grouperOptions []template.GrouperOption

	// logger for structured logging.
	logger *slog.Logger
}

// GroupStepOption configures a GroupStep.
type GroupStepOption func(*GroupStep)

// WithGrouperOptions sets the options of the template grouper.
func WithGrouperOptions(opts ...template.GrouperOption) GroupStepOption {
	return func(s *GroupStep) {
		s.grouperOptions = append(s.grouperOptions, opts...)
	}
}

// WithGroupLogger sets a custom logger for the group step.
func WithGroupLogger(logger *slog.Logger) GroupStepOption {
	return func(s *GroupStep) {
		s.logger = logger
	}
}

// NewGroupStep creates a group step sampling up to samples pages per
// template.
func NewGroupStep(samples int, opts ...GroupStepOption) *GroupStep {
	s := &GroupStep{
		samples: samples,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *GroupStep) Name() string {
	return "group"
}

// Do executes the group step.
func (s *GroupStep) Do(_ context.Context, audit *model.Audit) error {
	opts := append([]template.GrouperOption{template.WithLogger(s.logger)}, s.grouperOptions...)
	grouper := template.NewGrouper(opts...)
	for _, u := range audit.URLs {
		if err := grouper.Ingest(u); err != nil {
			return fmt.Errorf("failed to group %s: %w", u, err)
		}
	}
	grouper.Freeze()

	stats := grouper.Stats()
	if stats.URLs == 0 {
		return ErrNoURLs
	}

	audit.Templates = grouper.Templates()
	for _, t := range audit.Templates {
		audit.Samples[t.Signature.Key()] = grouper.Sample(t, s.samples)
	}

	if stats.Unclassified > 0 {
		s.logger.Warn("some URLs could not be classified",
			"count", stats.Unclassified,
			"first_error", grouper.Errors()[0],
		)
	}
	s.logger.Info("URLs grouped",
		"urls", stats.URLs,
		"templates", stats.Templates,
		"skipped", stats.Skipped,
		"samples", len(audit.SampledURLs()),
	)
	return nil
}

// CrawlStep fetches the sampled URLs with the crawl scheduler.
type CrawlStep struct {
	// scheduler runs the worker pool.
	scheduler *crawler.Scheduler
}

// NewCrawlStep creates a crawl step.
func NewCrawlStep(scheduler *crawler.Scheduler) *CrawlStep {
	return &CrawlStep{scheduler: scheduler}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step. A cancelled crawl keeps the results that
// completed and marks the report as cancelled.
func (s *CrawlStep) Do(ctx context.Context, audit *model.Audit) error {
	results, err := s.scheduler.Run(ctx, audit.SampledURLs())
	audit.Results = results
	if err != nil {
		if ctx.Err() != nil {
			audit.Report.Cancelled = true
			return nil
		}
		return fmt.Errorf("crawl failed: %w", err)
	}
	return nil
}

// AnalyzeStep runs the heavy-element analyzer on every fetched page.
// Pages are analyzed in parallel; the analyzer holds no mutable state.
type AnalyzeStep struct {
	// analyzer finds heavy elements.
	analyzer *analyzer.Analyzer

	// concurrency bounds the number of pages analyzed at once.
	concurrency int

	// logger for structured logging.
	logger *slog.Logger
}

// AnalyzeStepOption configures an AnalyzeStep.
type AnalyzeStepOption func(*AnalyzeStep)

// WithAnalyzeConcurrency sets the number of pages analyzed at once.
func WithAnalyzeConcurrency(n int) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithAnalyzeLogger sets a custom logger for the analyze step.
func WithAnalyzeLogger(logger *slog.Logger) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.logger = logger
	}
}

// NewAnalyzeStep creates an analyze step. Concurrency defaults to the
// number of CPUs.
func NewAnalyzeStep(a *analyzer.Analyzer, opts ...AnalyzeStepOption) *AnalyzeStep {
	s := &AnalyzeStep{
		analyzer:    a,
		concurrency: runtime.NumCPU(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Do executes the analyze step.
func (s *AnalyzeStep) Do(ctx context.Context, audit *model.Audit) error {
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for u, result := range audit.Results {
		if !result.OK() {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			analysis := s.analyzer.Analyze(u, result.Body)
			if analysis.ParseError != "" {
				s.logger.Warn("page could not be parsed", "url", u, "error", analysis.ParseError)
			}

			mu.Lock()
			audit.Analyses[u] = analysis
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}

	s.logger.Info("pages analyzed", "pages", len(audit.Analyses))
	return nil
}

// AggregateStep builds the report from the templates, crawl results and
// analyses.
type AggregateStep struct {
	// topN is the number of site-wide top findings.
	topN int

	// logger for structured logging.
	logger *slog.Logger
}

// NewAggregateStep creates an aggregate step.
func NewAggregateStep(topN int, logger *slog.Logger) *AggregateStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateStep{topN: topN, logger: logger}
}

// Name returns the step name.
func (s *AggregateStep) Name() string {
	return "aggregate"
}

// Do executes the aggregate step. Samples without a crawl result, because
// the audit stopped before they were fetched, are reported as cancelled.
func (s *AggregateStep) Do(_ context.Context, audit *model.Audit) error {
	agg := aggregate.New(aggregate.WithTopN(s.topN), aggregate.WithLogger(s.logger))
	for _, t := range audit.Templates {
		samples := audit.Samples[t.Signature.Key()]
		agg.AddTemplate(t, samples)
		for _, u := range samples {
			result, ok := audit.Results[u]
			if !ok {
				result = model.NewFailedResult(u, model.ErrorKindCancelled, 0, context.Canceled, 0)
			}
			agg.Add(t, result, audit.Analyses[u])
		}
	}

	agg.Build(audit.Report)
	audit.Report.FinishedAt = time.Now()

	summary := audit.Report.Summary
	s.logger.Info("audit completed",
		"templates", summary.TemplateCount,
		"pages", summary.PagesCrawled,
		"failed", summary.PagesFailed,
		"cached", summary.PagesFromCache,
		"flagged_bytes", summary.FlaggedBytes,
		"duration", audit.Elapsed(),
		"cancelled", audit.Report.Cancelled,
	)
	return nil
}
