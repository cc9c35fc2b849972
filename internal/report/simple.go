package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/nao1215/pageweight/internal/model"
)

// lineWidth is the width of section rules in the text report.
const lineWidth = 78

// SimpleWriter outputs human-readable text reports for the terminal.
// Tables are padded by display width so that template names and
// descriptions with wide characters stay aligned.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose lists every finding of every template, with excerpts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeTopFindings(&sb, report)
	w.writeTemplates(&sb, report)
	w.writeShared(&sb, report)
	w.writeFailed(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", lineWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", lineWidth))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	s := report.Summary
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", lineWidth))
	sb.WriteString("\n")
	sb.WriteString(runewidth.FillLeft("PAGEWEIGHT REPORT", (lineWidth+17)/2))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", lineWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Site:           %s\n", report.Site)
	fmt.Fprintf(sb, "Source:         %s\n", report.Source)
	fmt.Fprintf(sb, "Run ID:         %s\n", report.RunID)
	fmt.Fprintf(sb, "Audit Date:     %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Templates:      %d (%d URLs)\n", s.TemplateCount, s.URLCount)
	fmt.Fprintf(sb, "Pages Crawled:  %d (%d from cache, %d failed)\n", s.PagesCrawled, s.PagesFromCache, s.PagesFailed)
	fmt.Fprintf(sb, "Status:         %s\n", strings.ToUpper(statusText(report)))
	sb.WriteString("\n")
}

// writeSummary writes the byte totals and the per-category breakdown.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.Report) {
	s := report.Summary
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Total HTML:     %s\n", FormatBytes(s.TotalHTMLBytes))
	fmt.Fprintf(sb, "  Flagged:        %s (%s)\n", FormatBytes(s.FlaggedBytes), FormatPercent(s.FlaggedBytes, s.TotalHTMLBytes))
	fmt.Fprintf(sb, "    Primary:      %s\n", FormatBytes(s.PrimaryBytes))
	fmt.Fprintf(sb, "    Secondary:    %s\n", FormatBytes(s.SecondaryBytes))
	sb.WriteString("\n")

	rows := make([][]string, 0, len(model.AllCategories))
	for _, c := range model.AllCategories {
		if b := s.BytesByCategory[c]; b > 0 || w.showEmpty {
			rows = append(rows, []string{CategoryTitle(c), FormatBytes(b), FormatPercent(b, s.FlaggedBytes)})
		}
	}
	if len(rows) > 0 {
		sb.WriteString("  By category:\n")
		writeTable(sb, "    ", []string{"Category", "Bytes", "Share"}, rows, []bool{false, true, true})
		sb.WriteString("\n")
	}
}

// writeTopFindings writes the heaviest findings across the site.
func (w *SimpleWriter) writeTopFindings(sb *strings.Builder, report *model.Report) {
	top := report.Summary.TopFindings
	if len(top) == 0 && !w.showEmpty {
		return
	}
	section(sb, "TOP FINDINGS")

	if len(top) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}
	for i, f := range top {
		writeFinding(sb, strconv.Itoa(i+1)+".", f, w.verbose)
	}
	sb.WriteString("\n")
}

func writeFinding(sb *strings.Builder, bullet string, f model.Finding, verbose bool) {
	fmt.Fprintf(sb, "  %-4s %10s  %-20s %s\n", bullet, FormatBytes(f.SizeBytes), CategoryTitle(f.Category), f.Element.Identifier)
	fmt.Fprintf(sb, "       %s (%s, %s)\n", f.Description, f.Classification, f.Visibility)
	fmt.Fprintf(sb, "       %s\n", f.URL)
	if verbose && f.Element.Excerpt != "" {
		fmt.Fprintf(sb, "       > %s\n", runewidth.Truncate(f.Element.Excerpt, lineWidth-9, "..."))
	}
}

// writeTemplates writes one row per template, heaviest first. In verbose
// mode every finding of the template follows.
func (w *SimpleWriter) writeTemplates(sb *strings.Builder, report *model.Report) {
	names := report.TemplateNames()
	if len(names) == 0 && !w.showEmpty {
		return
	}
	section(sb, "TEMPLATES")

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		tr := report.Templates[name]
		rows = append(rows, []string{
			runewidth.Truncate(name, 40, "..."),
			strconv.Itoa(tr.MemberCount),
			strconv.Itoa(len(tr.Pages)),
			strconv.Itoa(tr.Stats.Count),
			FormatBytes(tr.Stats.TotalBytes),
			FormatBytes(tr.Stats.MedianBytes),
		})
	}
	writeTable(sb, "  ", []string{"Template", "URLs", "Sampled", "Findings", "Flagged", "Median"}, rows,
		[]bool{false, true, true, true, true, true})
	sb.WriteString("\n")

	if !w.verbose {
		return
	}
	for _, name := range names {
		tr := report.Templates[name]
		if len(tr.Findings) == 0 {
			continue
		}
		fmt.Fprintf(sb, "[%s]\n", name)
		for _, f := range tr.Findings {
			bullet := "*"
			if f.Subcomponent {
				bullet = "  -"
			}
			writeFinding(sb, bullet, f, true)
		}
		sb.WriteString("\n")
	}
}

// writeShared writes elements repeated across pages.
func (w *SimpleWriter) writeShared(sb *strings.Builder, report *model.Report) {
	shared := report.Summary.SharedFindings
	if len(shared) == 0 && !w.showEmpty {
		return
	}
	section(sb, "SHARED ELEMENTS")

	if len(shared) == 0 {
		sb.WriteString("  No shared elements\n\n")
		return
	}
	rows := make([][]string, 0, len(shared))
	for _, sf := range shared {
		rows = append(rows, []string{
			string(sf.Scope),
			FormatBytes(sf.Finding.SizeBytes),
			strconv.Itoa(len(sf.Pages)),
			runewidth.Truncate(sf.Finding.Element.Identifier, 36, "..."),
			sf.Finding.Description,
		})
	}
	writeTable(sb, "  ", []string{"Scope", "Size", "Pages", "Element", "Description"}, rows,
		[]bool{false, true, true, false, false})
	sb.WriteString("\n")
}

// writeFailed lists the pages that produced no analysis.
func (w *SimpleWriter) writeFailed(sb *strings.Builder, report *model.Report) {
	failed := report.FailedPages()
	if len(failed) == 0 && !w.showEmpty {
		return
	}
	section(sb, "FAILED PAGES")

	if len(failed) == 0 {
		sb.WriteString("  No failed pages\n\n")
		return
	}
	for _, p := range failed {
		fmt.Fprintf(sb, "  [%s] %s\n", p.ErrorKind, p.URL)
		fmt.Fprintf(sb, "       %s\n", p.Error)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", lineWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by pageweight\n")
	sb.WriteString("https://github.com/nao1215/pageweight\n")
	sb.WriteString(strings.Repeat("=", lineWidth))
	sb.WriteString("\n")
}

// writeTable writes rows padded to the display width of each column.
// rightAlign selects right alignment per column.
func writeTable(sb *strings.Builder, indent string, header []string, rows [][]string, rightAlign []bool) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	line := func(cells []string) {
		sb.WriteString(indent)
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			last := i == len(cells)-1
			switch {
			case rightAlign[i]:
				sb.WriteString(runewidth.FillLeft(cell, widths[i]))
			case last:
				sb.WriteString(cell)
			default:
				sb.WriteString(runewidth.FillRight(cell, widths[i]))
			}
		}
		sb.WriteString("\n")
	}

	line(header)
	sep := make([]string, len(header))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	line(sep)
	for _, row := range rows {
		line(row)
	}
}
