package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/pageweight/internal/model"
)

// Sheet names of the Excel workbook.
const (
	SheetSummary   = "Summary"
	SheetTemplates = "Templates"
	SheetPages     = "Pages"
	SheetFindings  = "Findings"
	SheetShared    = "Shared"
)

// ExcelWriter outputs reports as an .xlsx workbook with one sheet per
// table, for filtering and sorting in a spreadsheet.
type ExcelWriter struct {
	baseWriter
}

// NewExcelWriter creates an ExcelWriter that outputs to the given writer.
func NewExcelWriter(output io.Writer) *ExcelWriter {
	return &ExcelWriter{
		baseWriter: newBaseWriter(output),
	}
}

// countingWriter counts the bytes passed to the wrapped writer.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// Write outputs the report as a workbook.
func (w *ExcelWriter) Write(report *model.Report) (int, error) {
	f, err := BuildWorkbook(report)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cw := &countingWriter{w: w.output}
	if err := f.Write(cw); err != nil {
		return cw.n, fmt.Errorf("write workbook: %w", err)
	}
	return cw.n, nil
}

// BuildWorkbook renders the report into a new workbook. The caller closes it.
func BuildWorkbook(report *model.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	b := &workbook{file: f}

	b.summary(report)
	b.templates(report)
	b.pages(report)
	b.findings(report)
	b.shared(report)

	if b.err == nil {
		// NewFile starts with a default sheet that none of ours reuse.
		b.err = f.DeleteSheet("Sheet1")
	}
	if b.err == nil {
		if idx, err := f.GetSheetIndex(SheetSummary); err == nil {
			f.SetActiveSheet(idx)
		}
	}
	if b.err != nil {
		_ = f.Close()
		return nil, b.err
	}
	return f, nil
}

// workbook accumulates the first error of a sequence of sheet operations.
type workbook struct {
	file *excelize.File
	err  error
}

// sheet creates a sheet with a bold, frozen header row.
func (b *workbook) sheet(name string, header []any, widths ...float64) {
	if b.err != nil {
		return
	}
	if _, b.err = b.file.NewSheet(name); b.err != nil {
		return
	}
	if b.err = b.file.SetSheetRow(name, "A1", &header); b.err != nil {
		return
	}

	style, err := b.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		b.err = err
		return
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		b.err = err
		return
	}
	if b.err = b.file.SetCellStyle(name, "A1", last, style); b.err != nil {
		return
	}
	b.err = b.file.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	for i, width := range widths {
		if b.err != nil {
			return
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			b.err = err
			return
		}
		b.err = b.file.SetColWidth(name, col, col, width)
	}
}

// row writes values into row number n (1-based) of a sheet.
func (b *workbook) row(name string, n int, values ...any) {
	if b.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		b.err = err
		return
	}
	b.err = b.file.SetSheetRow(name, cell, &values)
}

func (b *workbook) summary(report *model.Report) {
	s := report.Summary
	b.sheet(SheetSummary, []any{"Property", "Value"}, 24, 60)

	rows := [][]any{
		{"Site", report.Site},
		{"Source", report.Source},
		{"Run ID", report.RunID},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05")},
		{"Finished", report.FinishedAt.Format("2006-01-02 15:04:05")},
		{"Status", statusText(report)},
		{"Samples per template", report.Settings.Samples},
		{"Templates", s.TemplateCount},
		{"URLs", s.URLCount},
		{"Pages crawled", s.PagesCrawled},
		{"Pages failed", s.PagesFailed},
		{"Pages from cache", s.PagesFromCache},
		{"Total HTML bytes", s.TotalHTMLBytes},
		{"Flagged bytes", s.FlaggedBytes},
		{"Primary bytes", s.PrimaryBytes},
		{"Secondary bytes", s.SecondaryBytes},
	}
	for _, c := range model.AllCategories {
		if v := s.BytesByCategory[c]; v > 0 {
			rows = append(rows, []any{CategoryTitle(c) + " bytes", v})
		}
	}
	for i, r := range rows {
		b.row(SheetSummary, i+2, r...)
	}
}

func (b *workbook) templates(report *model.Report) {
	b.sheet(SheetTemplates, []any{"Template", "URLs", "Sampled", "Findings", "Flagged bytes", "Max bytes", "Median bytes"}, 40)
	for i, name := range report.TemplateNames() {
		tr := report.Templates[name]
		b.row(SheetTemplates, i+2, name, tr.MemberCount, len(tr.Pages), tr.Stats.Count,
			tr.Stats.TotalBytes, tr.Stats.MaxBytes, tr.Stats.MedianBytes)
	}
}

func (b *workbook) pages(report *model.Report) {
	b.sheet(SheetPages, []any{"Template", "URL", "Status", "Source", "HTML bytes", "Flagged bytes", "Flagged %", "Findings", "Error kind", "Error"}, 30, 60)
	n := 2
	for _, name := range report.TemplateNames() {
		for _, p := range report.Templates[name].Pages {
			b.row(SheetPages, n, name, p.URL, p.StatusCode, string(p.Source), p.TotalBytes, p.FlaggedBytes,
				p.FlaggedPercent, p.FindingCount, string(p.ErrorKind), p.Error)
			n++
		}
	}
}

func (b *workbook) findings(report *model.Report) {
	b.sheet(SheetFindings, []any{"Template", "URL", "Position", "Size bytes", "Category", "Element", "Description", "Classification", "Visibility", "Subcomponent", "Excerpt"}, 30, 60, 10, 12, 18, 40, 36)
	n := 2
	for _, name := range report.TemplateNames() {
		for _, f := range report.Templates[name].Findings {
			b.row(SheetFindings, n, name, f.URL, f.Position, f.SizeBytes, CategoryTitle(f.Category),
				f.Element.Identifier, f.Description, string(f.Classification), string(f.Visibility),
				f.Subcomponent, f.Element.Excerpt)
			n++
		}
	}
}

func (b *workbook) shared(report *model.Report) {
	b.sheet(SheetShared, []any{"Scope", "Size bytes", "Pages", "Templates", "Category", "Element", "Description", "Classification"}, 16, 12, 8, 30, 18, 40, 36)
	for i, sf := range report.Summary.SharedFindings {
		f := sf.Finding
		b.row(SheetShared, i+2, string(sf.Scope), f.SizeBytes, len(sf.Pages), fmt.Sprint(sf.Templates),
			CategoryTitle(f.Category), f.Element.Identifier, f.Description, string(f.Classification))
	}
}
