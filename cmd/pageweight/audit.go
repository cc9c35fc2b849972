package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageweight/internal/analyzer"
	"github.com/nao1215/pageweight/internal/cache"
	"github.com/nao1215/pageweight/internal/config"
	"github.com/nao1215/pageweight/internal/crawler"
	"github.com/nao1215/pageweight/internal/database"
	pwlog "github.com/nao1215/pageweight/internal/log"
	"github.com/nao1215/pageweight/internal/model"
	"github.com/nao1215/pageweight/internal/pipeline"
	"github.com/nao1215/pageweight/internal/report"
	"github.com/nao1215/pageweight/internal/sitemap"
	"github.com/nao1215/pageweight/internal/template"
)

// errAllAuditsFailed is returned when no source produced a report.
var errAllAuditsFailed = errors.New("every audit failed")

// NewAuditCmd creates the audit command.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [sitemap-url...]",
		Short: "Audit the HTML weight of a website",
		Long: `Audit reads a sitemap, groups its pages into URL templates and crawls a
few sample pages per template. Every sampled page is analyzed for the
inline payload that inflates the HTML:

- Inline scripts, JSON-LD and serialized JSON state
- Inline styles, style attributes and inline SVG
- Data URIs and noscript fallbacks
- Hidden inputs, hidden content and HTML comments
- DOM subtrees that make up a large share of the page

Findings are classified as primary (worth fixing) or secondary, and
elements repeated across pages are reported once as shared elements.

Examples:
  # Audit a site from its sitemap
  pageweight audit https://example.com/sitemap.xml

  # Audit several sites, two at a time
  pageweight audit --batch 2 https://a.example/sitemap.xml https://b.example/sitemap.xml

  # Audit a list of URLs instead of a sitemap
  pageweight audit --urls urls.txt

  # Crawl five pages per template, four workers, half a second apart
  pageweight audit -s 5 -w 4 --delay 500ms https://example.com/sitemap.xml

  # Write a Markdown report and an Excel workbook
  pageweight audit -m -o report.md --excel report.xlsx https://example.com/sitemap.xml

Configuration file (.pageweight) example:
  defaults:
    thresholds:
      inline_script: 1000
  sites:
    www.example.com:
      cookie: "consent=accepted"
      ignorePatterns:
        - "/admin/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runAuditCmd,
	}

	// Source flags
	cmd.Flags().String("urls", "",
		"Read page URLs from a file (one per line) instead of a sitemap")

	// Crawl flags
	cmd.Flags().IntP("samples", "s", config.DefaultSamples,
		"Number of pages crawled per URL template (1-10)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent crawl workers")
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Pause of each worker between two network requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Deadline of one page request")
	cmd.Flags().String("cache-dir", config.XDGCacheDir(),
		"Page cache directory (empty disables the cache)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sitemaps audited concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pageweight in current or home directory)")

	// Report flags
	cmd.Flags().Bool("no-secondary", false,
		"Leave secondary findings out of the report")
	cmd.Flags().Int("top", config.DefaultTopN,
		"Number of findings listed in the site summary")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("excel", "",
		"Also write the report as an Excel workbook to this path")
	cmd.Flags().Bool("no-history", false,
		"Do not store the report in the run history")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Run history directory")

	return cmd
}

// runAuditCmd executes the audit command.
func runAuditCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newAuditor(cfg, cmd.Flags().Changed("samples"), cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}
	return a.run(ctx, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newLogger creates the redacting logger selected by the global flags.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getVerboseFlag(cmd)
	if jsonLogs, err := cmd.Flags().GetBool("log-json"); err == nil && jsonLogs {
		return pwlog.NewJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return pwlog.NewLogger(cmd.ErrOrStderr(), verbose)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.URLList, err = flags.GetString("urls"); err != nil {
		return nil, err
	}
	if cfg.Samples, err = flags.GetInt("samples"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.CacheDir, err = flags.GetString("cache-dir"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	noSecondary, err := flags.GetBool("no-secondary")
	if err != nil {
		return nil, err
	}
	cfg.IncludeSecondary = !noSecondary

	if cfg.TopN, err = flags.GetInt("top"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ExcelFile, err = flags.GetString("excel"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// If the user named a config file, it must exist. Otherwise a missing
	// file means built-in defaults.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Targets = args
	return cfg, nil
}

// auditor runs the audits of one command invocation. The HTTP client,
// the page cache and the run history are shared by all audits.
type auditor struct {
	cfg    *config.Config
	logger *slog.Logger

	// client is shared so that connections to one host are reused.
	client *http.Client

	// pages is the page cache.
	pages cache.Cache

	// db is the run history, or nil when history is disabled.
	db *database.RunDB

	// samplesFromFlag is set when --samples was given explicitly, which
	// takes precedence over the configuration file.
	samplesFromFlag bool

	// progressMu serializes progress lines of concurrent audits.
	progressMu sync.Mutex
	progress   io.Writer
}

// newAuditor opens the shared resources of a run.
func newAuditor(cfg *config.Config, samplesFromFlag bool, progress io.Writer, logger *slog.Logger) (*auditor, error) {
	a := &auditor{
		cfg:             cfg,
		logger:          logger,
		client:          &http.Client{},
		samplesFromFlag: samplesFromFlag,
		progress:        progress,
	}

	if cfg.CacheDir == "" {
		a.pages = &cache.None{}
	} else {
		disk, err := cache.NewDisk(cfg.CacheDir, cache.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open page cache: %w", err)
		}
		a.pages = disk
	}

	return a, nil
}

// samples returns the number of pages crawled per template for a site.
func (a *auditor) samples(sc config.SiteConfig) int {
	if sc.Samples > 0 && !a.samplesFromFlag {
		return sc.Samples
	}
	return a.cfg.Samples
}

// siteSteps are the steps that depend on the settings of one site.
type siteSteps struct {
	source  pipeline.Step
	group   pipeline.Step
	crawl   pipeline.Step
	analyze pipeline.Step
}

// newSiteSteps builds the steps of one site from its settings.
func (a *auditor) newSiteSteps(sc config.SiteConfig, logger *slog.Logger) *siteSteps {
	fetcher := crawler.NewFetcher(a.client,
		crawler.WithUserAgent(a.cfg.UserAgent),
		crawler.WithHeaders(sc.RequestHeaders()),
		crawler.WithMaxBodySize(a.cfg.MaxBodySize),
		crawler.WithTimeout(a.cfg.Timeout),
	)
	scheduler := crawler.NewScheduler(fetcher,
		crawler.WithWorkers(a.cfg.Workers),
		crawler.WithDelay(a.cfg.Delay),
		crawler.WithCache(a.pages),
		crawler.WithProgress(a.reportProgress),
		crawler.WithLogger(logger),
	)
	src := sitemap.NewFetcher(fetcher,
		sitemap.WithLogger(logger),
		sitemap.WithMaxSize(a.cfg.MaxBodySize),
	)

	grouperOpts := []template.GrouperOption{
		template.WithClassifier(template.NewClassifier(sc.Classifier)),
		template.WithLogger(logger),
	}
	if len(sc.IgnorePatterns) > 0 {
		grouperOpts = append(grouperOpts, template.WithIgnorePatterns(sc.IgnorePatterns))
	}
	if len(sc.FollowPatterns) > 0 {
		grouperOpts = append(grouperOpts, template.WithFollowPatterns(sc.FollowPatterns))
	}

	return &siteSteps{
		source: pipeline.NewSourceStep(src, logger),
		group: pipeline.NewGroupStep(a.samples(sc),
			pipeline.WithGrouperOptions(grouperOpts...),
			pipeline.WithGroupLogger(logger),
		),
		crawl: pipeline.NewCrawlStep(scheduler),
		analyze: pipeline.NewAnalyzeStep(
			analyzer.New(analyzer.WithThresholds(sc.Thresholds)),
			pipeline.WithAnalyzeLogger(logger),
		),
	}
}

// newPipeline builds the audit pipeline for one source.
//
// Site settings are looked up by audit.Report.Site when the first step
// that needs them runs. A URL list names no site, so the source step
// reads it first and records the site of its first URL.
func (a *auditor) newPipeline(source string) *pipeline.Pipeline {
	logger := a.logger.With("source", pwlog.RedactURL(source))

	var steps *siteSteps
	site := func(audit *model.Audit) *siteSteps {
		if steps == nil {
			sc := a.cfg.Site(audit.Report.Site)
			audit.Report.Settings.Samples = a.samples(sc)
			steps = a.newSiteSteps(sc, logger)
		}
		return steps
	}

	src := pipeline.Deferred("source", func(audit *model.Audit) pipeline.Step {
		return site(audit).source
	})
	if a.cfg.URLList != "" {
		src = pipeline.NewSourceStep(sitemap.ListFile{}, logger)
	}

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		src,
		pipeline.Deferred("group", func(audit *model.Audit) pipeline.Step {
			return site(audit).group
		}),
		pipeline.Deferred("crawl", func(audit *model.Audit) pipeline.Step {
			return site(audit).crawl
		}),
		pipeline.Always(pipeline.Deferred("analyze", func(audit *model.Audit) pipeline.Step {
			return site(audit).analyze
		})),
		pipeline.Always(pipeline.NewAggregateStep(a.cfg.TopN, logger)),
	)
	return p
}

// prepare records the settings snapshot of an audit.
func (a *auditor) prepare(audit *model.Audit) {
	audit.Report.Settings = model.Settings{
		Samples:          a.samples(a.cfg.Site(audit.Report.Site)),
		Workers:          a.cfg.Workers,
		DelaySeconds:     a.cfg.Delay.Seconds(),
		CacheDir:         a.cfg.CacheDir,
		IncludeSecondary: a.cfg.IncludeSecondary,
	}
}

// reportProgress prints one line per completed page.
func (a *auditor) reportProgress(p crawler.Progress) {
	if p.Result == nil {
		return
	}
	status := string(p.Result.Source)
	if !p.Result.OK() {
		status = "failed: " + string(p.Result.ErrorKind)
	}

	a.progressMu.Lock()
	defer a.progressMu.Unlock()
	fmt.Fprintf(a.progress, "[%d/%d] %s (%s)\n", p.Done, p.Total, pwlog.RedactURL(p.Result.URL), status)
}

// run audits every source and writes the reports.
func (a *auditor) run(ctx context.Context, stdout io.Writer) error {
	if a.cfg.SaveToDB {
		db, err := database.Open(a.cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer db.Close()
		a.db = db
	}

	sources := a.cfg.Sources()
	fmt.Fprintf(a.progress, "Auditing %d source(s)...\n", len(sources))
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(a.newPipeline,
		pipeline.WithConcurrency(a.cfg.BatchSize),
		pipeline.WithBatchLogger(a.logger),
		pipeline.WithPrepare(a.prepare),
	)
	audits, batchErr := bp.ProcessBatch(ctx, sources)

	written := 0
	for i, audit := range audits {
		if !hasReport(audit) {
			fmt.Fprintf(a.progress, "Audit of %s failed: %v\n", pwlog.RedactURL(audit.Source), audit.Error)
			continue
		}
		if err := a.output(audit.Report, stdout, i, len(audits)); err != nil {
			return err
		}
		a.save(ctx, audit.Report)
		written++
	}

	fmt.Fprintf(a.progress, "Audit completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	if batchErr != nil {
		return fmt.Errorf("audit interrupted: %w", batchErr)
	}
	if written == 0 {
		return errAllAuditsFailed
	}
	return nil
}

// hasReport reports whether an audit got far enough to produce a report.
// A cancelled audit still reports what it crawled.
func hasReport(audit *model.Audit) bool {
	if audit.Report.FinishedAt.IsZero() {
		return false
	}
	return audit.Error == nil || audit.Report.Cancelled
}

// output writes the report in the requested formats.
func (a *auditor) output(r *model.Report, stdout io.Writer, index, total int) error {
	r = report.Prepare(r, a.cfg.IncludeSecondary)

	if err := a.writeReport(r, stdout, index, total); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if a.cfg.ExcelFile != "" {
		path := reportPath(a.cfg.ExcelFile, r, total)
		if err := writeFile(path, report.NewExcelWriter, r); err != nil {
			return fmt.Errorf("failed to write Excel report: %w", err)
		}
		fmt.Fprintf(a.progress, "Excel report written to %s\n", path)
	}
	return nil
}

// writeReport writes the main report to stdout or to the output file.
func (a *auditor) writeReport(r *model.Report, stdout io.Writer, index, total int) error {
	newWriter := a.writerFactory()

	if a.cfg.ReportFile == "" {
		if index > 0 && !a.cfg.JSONReport {
			fmt.Fprintln(stdout)
		}
		_, err := newWriter(stdout).Write(r)
		return err
	}

	path := reportPath(a.cfg.ReportFile, r, total)
	if err := writeFile(path, newWriter, r); err != nil {
		return err
	}
	fmt.Fprintf(a.progress, "Report written to %s\n", path)
	return nil
}

// writerFactory returns a constructor for the selected report format.
func (a *auditor) writerFactory() func(io.Writer) report.Writer {
	switch {
	case a.cfg.JSONReport:
		return func(w io.Writer) report.Writer {
			return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
		}
	case a.cfg.MarkdownReport:
		return func(w io.Writer) report.Writer { return report.NewMarkdownWriter(w) }
	default:
		return func(w io.Writer) report.Writer {
			return report.NewSimpleWriter(w, report.WithVerbose(a.cfg.Verbose))
		}
	}
}

// writeFile writes a report to path with a writer built by newWriter.
func writeFile[W report.Writer](path string, newWriter func(io.Writer) W, r *model.Report) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain URLs of logged-in pages.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if _, err := newWriter(f).Write(r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// reportPath returns the output path of a report. When several sources
// are audited, the host of each site is inserted before the extension
// so that the reports do not overwrite each other.
func reportPath(path string, r *model.Report, total int) string {
	if total <= 1 {
		return path
	}
	host := r.Site
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.NewReplacer(":", "_", "/", "_").Replace(host)

	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + host + ext
}

// save stores the full report in the run history. Failures are logged;
// the report has already been written.
func (a *auditor) save(ctx context.Context, r *model.Report) {
	if a.db == nil {
		return
	}
	if err := a.db.SaveRun(context.WithoutCancel(ctx), r); err != nil {
		a.logger.Error("failed to save run", "run_id", r.RunID, "error", err)
		return
	}
	a.logger.Info("run saved", "run_id", r.RunID, "db", a.db.Path())
}
