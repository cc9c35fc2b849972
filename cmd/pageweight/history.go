package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/pageweight/internal/config"
	"github.com/nao1215/pageweight/internal/database"
	"github.com/nao1215/pageweight/internal/model"
	"github.com/nao1215/pageweight/internal/report"
)

// Directions of the flagged weight between two runs.
const (
	weightLighter   = "lighter"
	weightHeavier   = "heavier"
	weightUnchanged = "unchanged"
)

// Template states in a comparison.
const (
	templateAdded   = "added"
	templateRemoved = "removed"
	templateChanged = "changed"
	templateSame    = "unchanged"
)

// NewHistoryCmd creates the history command.
// This command reads the run history stored by the audit command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "Show past audits and compare runs",
		Long: `History shows the audits stored in the run history and compares runs.

Without a site, it lists every audited site. With a site, it compares the
latest run with the previous one and shows:
- The change of the total and flagged HTML bytes
- The flagged bytes of every template, before and after
- Findings that appeared or disappeared since the earlier run

The site may be given as a host (example.com) or as a URL on the site.

Examples:
  # List audited sites
  pageweight history

  # Compare the latest two runs of a site
  pageweight history https://example.com

  # List the runs of a site
  pageweight history --list example.com

  # Compare the latest run with a specific run
  pageweight history --with-run-id 0b7c... example.com

  # Compare with the first run since a date
  pageweight history --since 2026-01-01 example.com

  # Output the comparison as Markdown
  pageweight history -m example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List the runs of the site")
	cmd.Flags().StringP("with-run-id", "i", "",
		"Compare with a specific run (use --list to see run IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run on or after this date (format: YYYY-MM-DD)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Run history directory")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	list, err := flags.GetBool("list")
	if err != nil {
		return err
	}
	withRunID, err := flags.GetString("with-run-id")
	if err != nil {
		return err
	}
	since, err := flags.GetString("since")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	// Check arguments before opening the database.
	if len(args) == 0 && (list || withRunID != "" || since != "") {
		return errors.New("a site is required with --list, --with-run-id and --since")
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if withRunID != "" && since != "" {
		return errors.New("--with-run-id and --since cannot be used together")
	}

	// Open the existing database only; a missing history is reported as such.
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open run history (run 'pageweight audit' first): %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		return listSites(ctx, out, db)
	}

	site := normalizeSite(args[0])
	if list {
		return listRuns(ctx, out, db, site)
	}

	previous, current, err := selectRuns(ctx, db, site, withRunID, since)
	if err != nil {
		return err
	}
	comparison := compareRuns(previous, current)

	switch {
	case jsonOutput:
		return outputComparisonJSON(out, comparison)
	case markdownOutput:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// normalizeSite turns a host or any URL on a site into the scheme and
// host under which its runs are stored. A bare host is taken as https.
func normalizeSite(arg string) string {
	arg = strings.TrimSpace(arg)
	if !strings.Contains(arg, "://") {
		arg = "https://" + arg
	}
	return model.SiteOf(strings.TrimSuffix(arg, "/"))
}

// listSites prints every site with stored runs.
func listSites(ctx context.Context, out io.Writer, db *database.RunDB) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No audited sites found in the run history.")
		fmt.Fprintln(out, "\nUse 'pageweight audit <sitemap-url>' to audit a site.")
		return nil
	}

	fmt.Fprintf(out, "Audited sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'pageweight history --list <site>' to see the runs of a site.")
	return nil
}

// listRuns prints the runs of a site, newest first.
func listRuns(ctx context.Context, out io.Writer, db *database.RunDB, site string) error {
	runs, err := db.ListRuns(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs found for %s\n", site)
		return nil
	}

	fmt.Fprintf(out, "Runs of %s (%d):\n\n", site, len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %9s  %6s  %10s  %10s\n", "Run ID", "Date", "Templates", "Pages", "HTML", "Flagged")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, run := range runs {
		date := run.StartedAt.Local().Format("2006-01-02 15:04:05")
		pages := strconv.Itoa(run.PagesCrawled)
		if run.Cancelled {
			pages += "*"
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %9d  %6s  %10s  %10s\n",
			run.RunID, date, run.TemplateCount, pages,
			report.FormatBytes(run.TotalHTMLBytes), report.FormatBytes(run.FlaggedBytes))
	}

	fmt.Fprintln(out, "\n  * cancelled run (partial results)")
	fmt.Fprintln(out, "\nUse 'pageweight history <site>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'pageweight history --with-run-id <id> <site>' to compare with a specific run.")
	return nil
}

// selectRuns loads the two reports to compare: the latest run of the site
// and the earlier run chosen by the flags.
func selectRuns(ctx context.Context, db *database.RunDB, site, withRunID, since string) (*model.Report, *model.Report, error) {
	runs, err := db.ListRuns(ctx, site)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil, fmt.Errorf("no runs found for %s", site)
	}

	var previousID string
	switch {
	case withRunID != "":
		previousID = withRunID
	case since != "":
		date, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// Runs are newest first; take the oldest one on or after date.
		for i := len(runs) - 1; i >= 0; i-- {
			if !runs[i].StartedAt.Before(date) {
				previousID = runs[i].RunID
				break
			}
		}
		if previousID == "" {
			return nil, nil, fmt.Errorf("no runs found since %s", since)
		}
		if previousID == runs[0].RunID {
			return nil, nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", since)
		}
	default:
		if len(runs) < 2 {
			return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		previousID = runs[1].RunID
	}

	current, err := db.GetRun(ctx, runs[0].RunID)
	if err != nil {
		return nil, nil, err
	}
	previous, err := db.GetRun(ctx, previousID)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, fmt.Errorf("run %s not found", runs[0].RunID)
	}
	if previous == nil {
		return nil, nil, fmt.Errorf("run %s not found", previousID)
	}
	if previous.Site != site {
		return nil, nil, fmt.Errorf("run %s belongs to %s, not %s", previousID, previous.Site, site)
	}
	if previous.RunID == current.RunID {
		return nil, nil, errors.New("cannot compare a run with itself")
	}
	return previous, current, nil
}

// Comparison holds the result of comparing two runs of a site.
type Comparison struct {
	// Site is the audited site.
	Site string `json:"site"`

	// Previous and Current describe the compared runs.
	Previous RunSummary `json:"previous_run"`
	Current  RunSummary `json:"current_run"`

	// Direction is "lighter", "heavier" or "unchanged", by flagged bytes.
	Direction string `json:"direction"`

	// FlaggedDelta is the change of the flagged bytes.
	FlaggedDelta int `json:"flagged_delta"`

	// TotalDelta is the change of the total HTML bytes.
	TotalDelta int `json:"total_delta"`

	// Templates lists the flagged bytes per template, largest change first.
	Templates []TemplateDelta `json:"templates"`

	// NewFindings appeared in the current run.
	NewFindings []FindingChange `json:"new_findings,omitempty"`

	// ResolvedFindings were in the previous run but not in the current one.
	ResolvedFindings []FindingChange `json:"resolved_findings,omitempty"`

	// UnchangedCount is the number of findings present in both runs.
	UnchangedCount int `json:"unchanged_count"`
}

// RunSummary describes one run in a comparison.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	Templates      int       `json:"templates"`
	PagesCrawled   int       `json:"pages_crawled"`
	TotalHTMLBytes int       `json:"total_html_bytes"`
	FlaggedBytes   int       `json:"flagged_bytes"`
	Cancelled      bool      `json:"cancelled"`
}

// TemplateDelta is the change of the flagged bytes of one template.
// Template stats are totals over the sampled pages, so a change of the
// samples setting between runs shows up here.
type TemplateDelta struct {
	Template string `json:"template"`
	Status   string `json:"status"`
	Previous int    `json:"previous_bytes"`
	Current  int    `json:"current_bytes"`
	Delta    int    `json:"delta"`
}

// FindingChange is a finding that appeared or disappeared. Findings are
// matched by template and element fingerprint, so the same element on
// another sampled page of the template is not a change.
type FindingChange struct {
	Template    string         `json:"template"`
	Category    model.Category `json:"category"`
	Element     string         `json:"element"`
	Description string         `json:"description"`
	SizeBytes   int            `json:"size_bytes"`
}

func summarizeRun(r *model.Report) RunSummary {
	return RunSummary{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt,
		Templates:      r.Summary.TemplateCount,
		PagesCrawled:   r.Summary.PagesCrawled,
		TotalHTMLBytes: r.Summary.TotalHTMLBytes,
		FlaggedBytes:   r.Summary.FlaggedBytes,
		Cancelled:      r.Cancelled,
	}
}

// compareRuns compares two reports of the same site.
func compareRuns(previous, current *model.Report) *Comparison {
	c := &Comparison{
		Site:     current.Site,
		Previous: summarizeRun(previous),
		Current:  summarizeRun(current),
	}
	c.FlaggedDelta = c.Current.FlaggedBytes - c.Previous.FlaggedBytes
	c.TotalDelta = c.Current.TotalHTMLBytes - c.Previous.TotalHTMLBytes
	switch {
	case c.FlaggedDelta < 0:
		c.Direction = weightLighter
	case c.FlaggedDelta > 0:
		c.Direction = weightHeavier
	default:
		c.Direction = weightUnchanged
	}

	c.Templates = compareTemplates(previous, current)

	previousFindings := findingsByKey(previous)
	currentFindings := findingsByKey(current)
	for key, f := range currentFindings {
		if _, ok := previousFindings[key]; !ok {
			c.NewFindings = append(c.NewFindings, f)
		}
	}
	for key, f := range previousFindings {
		if _, ok := currentFindings[key]; ok {
			c.UnchangedCount++
		} else {
			c.ResolvedFindings = append(c.ResolvedFindings, f)
		}
	}
	sortChanges(c.NewFindings)
	sortChanges(c.ResolvedFindings)

	return c
}

// compareTemplates returns the per-template deltas, largest absolute
// change first and by name on ties.
func compareTemplates(previous, current *model.Report) []TemplateDelta {
	names := make(map[string]struct{})
	for name := range previous.Templates {
		names[name] = struct{}{}
	}
	for name := range current.Templates {
		names[name] = struct{}{}
	}

	deltas := make([]TemplateDelta, 0, len(names))
	for name := range names {
		d := TemplateDelta{Template: name}
		prev, inPrev := previous.Templates[name]
		cur, inCur := current.Templates[name]
		if inPrev {
			d.Previous = prev.Stats.TotalBytes
		}
		if inCur {
			d.Current = cur.Stats.TotalBytes
		}
		d.Delta = d.Current - d.Previous
		switch {
		case !inPrev:
			d.Status = templateAdded
		case !inCur:
			d.Status = templateRemoved
		case d.Delta != 0:
			d.Status = templateChanged
		default:
			d.Status = templateSame
		}
		deltas = append(deltas, d)
	}

	slices.SortFunc(deltas, func(a, b TemplateDelta) int {
		if c := cmp.Compare(abs(b.Delta), abs(a.Delta)); c != 0 {
			return c
		}
		return cmp.Compare(a.Template, b.Template)
	})
	return deltas
}

// findingsByKey indexes the top-level findings of a report by template
// and fingerprint, keeping the largest instance of each element.
func findingsByKey(r *model.Report) map[string]FindingChange {
	out := make(map[string]FindingChange)
	for name, tr := range r.Templates {
		for _, f := range tr.Findings {
			if f.Subcomponent {
				continue
			}
			key := name + "|" + f.Fingerprint()
			if existing, ok := out[key]; ok && existing.SizeBytes >= f.SizeBytes {
				continue
			}
			out[key] = FindingChange{
				Template:    name,
				Category:    f.Category,
				Element:     f.Element.Identifier,
				Description: f.Description,
				SizeBytes:   f.SizeBytes,
			}
		}
	}
	return out
}

func sortChanges(changes []FindingChange) {
	slices.SortFunc(changes, func(a, b FindingChange) int {
		if c := cmp.Compare(b.SizeBytes, a.SizeBytes); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Template, b.Template); c != 0 {
			return c
		}
		return cmp.Compare(a.Element, b.Element)
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, c *Comparison) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, c *Comparison) error {
	md := markdown.NewMarkdown(out)

	md.H1("Run Comparison: " + c.Site)
	md.PlainText("")
	md.PlainTextf("**Flagged weight:** %s", formatDirection(c.Direction))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", c.Previous.StartedAt.Format("2006-01-02 15:04"), c.Current.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Run ID", "`" + c.Previous.RunID + "`", "`" + c.Current.RunID + "`", "-"},
			{"Pages crawled", strconv.Itoa(c.Previous.PagesCrawled), strconv.Itoa(c.Current.PagesCrawled),
				formatDelta(c.Current.PagesCrawled - c.Previous.PagesCrawled)},
			{"Total HTML", report.FormatBytes(c.Previous.TotalHTMLBytes), report.FormatBytes(c.Current.TotalHTMLBytes),
				formatBytesDelta(c.TotalDelta)},
			{"**Flagged**", "**" + report.FormatBytes(c.Previous.FlaggedBytes) + "**", "**" + report.FormatBytes(c.Current.FlaggedBytes) + "**",
				"**" + formatBytesDelta(c.FlaggedDelta) + "**"},
		},
	})
	md.PlainText("")

	if c.Previous.Cancelled || c.Current.Cancelled {
		md.Warning("One of the runs was cancelled; its totals cover the crawled pages only.")
		md.PlainText("")
	}

	if len(c.Templates) > 0 {
		md.H2("Templates")
		md.PlainText("")
		rows := make([][]string, 0, len(c.Templates))
		for _, t := range c.Templates {
			rows = append(rows, []string{
				"`" + t.Template + "`",
				t.Status,
				report.FormatBytes(t.Previous),
				report.FormatBytes(t.Current),
				formatBytesDelta(t.Delta),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Template", "Status", "Previous", "Current", "Change"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(c.NewFindings) > 0 {
		md.H2(fmt.Sprintf("New Findings (%d)", len(c.NewFindings)))
		md.PlainText("")
		items := make([]string, 0, len(c.NewFindings))
		for _, f := range c.NewFindings {
			items = append(items, fmt.Sprintf("**%s** %s `%s` in `%s`: %s",
				report.FormatBytes(f.SizeBytes), report.CategoryTitle(f.Category), f.Element, f.Template, f.Description))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(c.ResolvedFindings) > 0 {
		md.H2(fmt.Sprintf("Resolved Findings (%d)", len(c.ResolvedFindings)))
		md.PlainText("")
		items := make([]string, 0, len(c.ResolvedFindings))
		for _, f := range c.ResolvedFindings {
			items = append(items, fmt.Sprintf("~~**%s** %s `%s` in `%s`~~",
				report.FormatBytes(f.SizeBytes), report.CategoryTitle(f.Category), f.Element, f.Template))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if c.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d findings unchanged*", c.UnchangedCount)
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, c *Comparison) error {
	fmt.Fprintf(out, "Run Comparison: %s\n", c.Site)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nFlagged weight: %s\n", formatDirection(c.Direction))

	fmt.Fprintf(out, "\nPrevious run: %s  (%s)\n", c.Previous.StartedAt.Local().Format("2006-01-02 15:04:05"), c.Previous.RunID)
	fmt.Fprintf(out, "Current run:  %s  (%s)\n", c.Current.StartedAt.Local().Format("2006-01-02 15:04:05"), c.Current.RunID)

	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-14s  %12s  %12s  %12s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 56))
	fmt.Fprintf(out, "  %-14s  %12d  %12d  %12s\n", "Pages crawled",
		c.Previous.PagesCrawled, c.Current.PagesCrawled, formatDelta(c.Current.PagesCrawled-c.Previous.PagesCrawled))
	fmt.Fprintf(out, "  %-14s  %12s  %12s  %12s\n", "Total HTML",
		report.FormatBytes(c.Previous.TotalHTMLBytes), report.FormatBytes(c.Current.TotalHTMLBytes), formatBytesDelta(c.TotalDelta))
	fmt.Fprintf(out, "  %-14s  %12s  %12s  %12s\n", "Flagged",
		report.FormatBytes(c.Previous.FlaggedBytes), report.FormatBytes(c.Current.FlaggedBytes), formatBytesDelta(c.FlaggedDelta))

	if len(c.Templates) > 0 {
		fmt.Fprintln(out, "\nTemplates:")
		for _, t := range c.Templates {
			fmt.Fprintf(out, "  %-10s %12s  %s\n", t.Status, formatBytesDelta(t.Delta), t.Template)
		}
	}

	if len(c.NewFindings) > 0 {
		fmt.Fprintf(out, "\nNew Findings (%d):\n", len(c.NewFindings))
		for _, f := range c.NewFindings {
			fmt.Fprintf(out, "  [+] %10s  %s %s\n", report.FormatBytes(f.SizeBytes), report.CategoryTitle(f.Category), f.Element)
			fmt.Fprintf(out, "      in %s: %s\n", f.Template, f.Description)
		}
	}

	if len(c.ResolvedFindings) > 0 {
		fmt.Fprintf(out, "\nResolved Findings (%d):\n", len(c.ResolvedFindings))
		for _, f := range c.ResolvedFindings {
			fmt.Fprintf(out, "  [-] %10s  %s %s\n", report.FormatBytes(f.SizeBytes), report.CategoryTitle(f.Category), f.Element)
			fmt.Fprintf(out, "      in %s\n", f.Template)
		}
	}

	if c.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d findings\n", c.UnchangedCount)
	}

	return nil
}

// formatDirection formats the weight direction for display.
func formatDirection(direction string) string {
	switch direction {
	case weightLighter:
		return "LIGHTER (flagged bytes decreased)"
	case weightHeavier:
		return "HEAVIER (flagged bytes increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

// formatBytesDelta formats a byte delta with sign and unit.
func formatBytesDelta(delta int) string {
	switch {
	case delta > 0:
		return "+" + report.FormatBytes(delta)
	case delta < 0:
		return "-" + report.FormatBytes(-delta)
	default:
		return "0 B"
	}
}
