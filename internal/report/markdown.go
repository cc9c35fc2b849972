package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/pageweight/internal/model"
)

// Flagged share of the total HTML above which the Markdown report raises
// a stronger alert.
const (
	cautionPercent   = 50.0
	importantPercent = 20.0
)

// MarkdownWriter outputs reports as GitHub Flavored Markdown, with a
// mermaid pie chart of the flagged bytes per category.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeTopFindings(md, report)
	w.writeTemplates(md, report)
	w.writeShared(md, report)
	w.writeFailed(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	s := report.Summary
	md.H1("Page Weight Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + report.Site + "`"},
			{"Source", "`" + report.Source + "`"},
			{"Run ID", "`" + report.RunID + "`"},
			{"Audit Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Templates", strconv.Itoa(s.TemplateCount) + " (" + strconv.Itoa(s.URLCount) + " URLs)"},
			{"Pages Crawled", strconv.Itoa(s.PagesCrawled) + " (" + strconv.Itoa(s.PagesFromCache) + " from cache)"},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.Report) string {
	if report.Cancelled {
		return "⚠️ Cancelled (partial results)"
	}
	if report.Summary.PagesFailed > 0 {
		return "✅ Complete (" + strconv.Itoa(report.Summary.PagesFailed) + " failed pages)"
	}
	return "✅ Complete"
}

// writeSummary writes the byte totals, the category breakdown and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report) {
	s := report.Summary
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Measure", "Bytes", "Share of HTML"},
		Rows: [][]string{
			{"Total HTML", FormatBytes(s.TotalHTMLBytes), "100%"},
			{"Flagged", FormatBytes(s.FlaggedBytes), FormatPercent(s.FlaggedBytes, s.TotalHTMLBytes)},
			{"Primary", FormatBytes(s.PrimaryBytes), FormatPercent(s.PrimaryBytes, s.TotalHTMLBytes)},
			{"Secondary", FormatBytes(s.SecondaryBytes), FormatPercent(s.SecondaryBytes, s.TotalHTMLBytes)},
		},
	})
	md.PlainText("")

	rows := make([][]string, 0)
	for _, c := range model.AllCategories {
		if b := s.BytesByCategory[c]; b > 0 {
			rows = append(rows, []string{CategoryTitle(c), FormatBytes(b), FormatPercent(b, s.FlaggedBytes)})
		}
	}
	if len(rows) > 0 {
		md.H3("Flagged Bytes by Category")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Category", "Bytes", "Share of Flagged"},
			Rows:   rows,
		})
		md.PlainText("")
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of flagged bytes per category.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.Report) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Flagged Bytes by Category"),
		piechart.WithShowData(true),
	)

	for _, c := range model.AllCategories {
		if b := report.Summary.BytesByCategory[c]; b > 0 {
			chart.LabelAndIntValue(CategoryTitle(c), uint64(b))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching how much of the HTML is flagged.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.Report) {
	s := report.Summary
	percent := 0.0
	if s.TotalHTMLBytes > 0 {
		percent = float64(s.FlaggedBytes) / float64(s.TotalHTMLBytes) * 100
	}

	switch {
	case report.Cancelled:
		md.Warningf(
			"The audit was cancelled. The report covers %d crawled page(s) only.",
			s.PagesCrawled,
		)
	case percent >= cautionPercent:
		md.Cautionf(
			"%s of the HTML (%s) is inline payload. Most of each download is not page content.",
			FormatPercent(s.FlaggedBytes, s.TotalHTMLBytes), FormatBytes(s.FlaggedBytes),
		)
	case percent >= importantPercent:
		md.Importantf(
			"%s of the HTML (%s) is inline payload worth reviewing.",
			FormatPercent(s.FlaggedBytes, s.TotalHTMLBytes), FormatBytes(s.FlaggedBytes),
		)
	case s.FlaggedBytes > 0:
		md.Note("Only a small share of the HTML is flagged.")
	default:
		md.Tip("No heavy inline elements detected.")
	}
	md.PlainText("")
}

// writeTopFindings writes the heaviest findings across the site.
func (w *MarkdownWriter) writeTopFindings(md *markdown.Markdown, report *model.Report) {
	md.H2("Top Findings")
	md.PlainText("")

	top := report.Summary.TopFindings
	if len(top) == 0 {
		md.PlainText("No findings.")
		md.PlainText("")
		return
	}
	w.writeFindingsTable(md, top, true)
}

// writeFindingsTable writes a table of findings, followed by collapsible
// excerpts.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Finding, withURL bool) {
	header := []string{"Size", "Category", "Element", "Description", "Class"}
	if withURL {
		header = append(header, "Page")
	}

	rows := make([][]string, len(findings))
	for i, f := range findings {
		element := "`" + truncateString(f.Element.Identifier, 60) + "`"
		if f.Subcomponent {
			element = "↳ " + element
		}
		row := []string{
			FormatBytes(f.SizeBytes),
			CategoryTitle(f.Category),
			element,
			f.Description,
			string(f.Classification),
		}
		if withURL {
			row = append(row, truncateString(f.URL, 60))
		}
		rows[i] = row
	}

	md.Table(markdown.TableSet{
		Header: header,
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range findings {
		if f.Element.Excerpt != "" {
			md.Details(f.Element.Identifier, "`"+f.Element.Excerpt+"`")
		}
	}
	md.PlainText("")
}

// writeTemplates writes one section per template, heaviest first.
func (w *MarkdownWriter) writeTemplates(md *markdown.Markdown, report *model.Report) {
	md.H2("Templates")
	md.PlainText("")

	names := report.TemplateNames()
	if len(names) == 0 {
		md.PlainText("No templates.")
		md.PlainText("")
		return
	}

	overview := make([][]string, 0, len(names))
	for _, name := range names {
		tr := report.Templates[name]
		overview = append(overview, []string{
			"`" + name + "`",
			strconv.Itoa(tr.MemberCount),
			strconv.Itoa(len(tr.Pages)),
			strconv.Itoa(tr.Stats.Count),
			FormatBytes(tr.Stats.TotalBytes),
			FormatBytes(tr.Stats.MaxBytes),
			FormatBytes(tr.Stats.MedianBytes),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Template", "URLs", "Sampled", "Findings", "Flagged", "Max", "Median"},
		Rows:   overview,
	})
	md.PlainText("")

	for _, name := range names {
		tr := report.Templates[name]
		md.H3("`" + name + "`")
		md.PlainText("")

		pages := make([][]string, 0, len(tr.Pages))
		for _, p := range tr.Pages {
			status := strconv.Itoa(p.StatusCode)
			if p.Failed() {
				status = "❌ " + string(p.ErrorKind)
			}
			pages = append(pages, []string{
				p.URL,
				status,
				FormatBytes(p.TotalBytes),
				FormatBytes(p.FlaggedBytes),
				strconv.FormatFloat(p.FlaggedPercent, 'f', 1, 64) + "%",
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Page", "Status", "HTML", "Flagged", "Share"},
			Rows:   pages,
		})
		md.PlainText("")

		if len(tr.Findings) == 0 {
			md.PlainText("No findings.")
			md.PlainText("")
			continue
		}
		w.writeFindingsTable(md, tr.Findings, len(tr.Pages) > 1)
	}
}

// writeShared writes elements repeated across pages.
func (w *MarkdownWriter) writeShared(md *markdown.Markdown, report *model.Report) {
	shared := report.Summary.SharedFindings
	if len(shared) == 0 {
		return
	}

	md.H2("Shared Elements")
	md.PlainText("")

	rows := make([][]string, len(shared))
	for i, sf := range shared {
		rows[i] = []string{
			string(sf.Scope),
			FormatBytes(sf.Finding.SizeBytes),
			strconv.Itoa(len(sf.Pages)),
			"`" + truncateString(sf.Finding.Element.Identifier, 60) + "`",
			sf.Finding.Description,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Scope", "Size", "Pages", "Element", "Description"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailed lists the pages that produced no analysis.
func (w *MarkdownWriter) writeFailed(md *markdown.Markdown, report *model.Report) {
	failed := report.FailedPages()
	if len(failed) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")

	rows := make([][]string, len(failed))
	for i, p := range failed {
		rows[i] = []string{p.URL, string(p.ErrorKind), p.Error}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Kind", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pageweight](https://github.com/nao1215/pageweight)*")
}
