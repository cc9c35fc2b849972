package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/pageweight/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.Report {
	report := model.NewReport("run-123", "https://example.com", "https://example.com/sitemap.xml")
	report.StartedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(time.Minute)
	report.Settings = model.Settings{Samples: 2, Workers: 3, DelaySeconds: 1, IncludeSecondary: true}

	gtm := model.Finding{
		URL:            "https://example.com/p/1",
		Element:        model.Element{Tag: "script", Identifier: `<script src="googletagmanager.com/gtm.js">`, Excerpt: "(function(w,d,s,l,i)"},
		Position:       3,
		SizeBytes:      4000,
		Classification: model.Secondary,
		Category:       model.CategoryInlineScript,
		Description:    "Google Tag Manager",
		Visibility:     model.VisibilityBackend,
	}
	state := model.Finding{
		URL:            "https://example.com/p/1",
		Element:        model.Element{Tag: "script", Identifier: `<script id="__NEXT_DATA__">`},
		Position:       9,
		SizeBytes:      50000,
		Classification: model.Primary,
		Category:       model.CategoryJSONLD,
		Description:    "Next.js page data",
		Visibility:     model.VisibilityBackend,
	}
	node := model.Finding{
		URL:            "https://example.com/p/1",
		Element:        model.Element{Tag: "script", Identifier: `<script id="__NEXT_DATA__"> props.pageProps`},
		Position:       9,
		SizeBytes:      30000,
		Classification: model.Primary,
		Category:       model.CategoryJSONNode,
		Description:    "Large JSON node",
		Visibility:     model.VisibilityBackend,
		Subcomponent:   true,
	}

	products := &model.TemplateReport{
		Name:        "/p/{id}",
		Signature:   model.NewSignature(model.Literal("p"), model.Variable()),
		MemberCount: 3,
		Pages: []model.PageSummary{
			{URL: "https://example.com/p/1", StatusCode: 200, Source: model.SourceNetwork, TotalBytes: 80000, FlaggedBytes: 54000, FlaggedPercent: 67.5, FindingCount: 3},
			{URL: "https://example.com/p/2", StatusCode: 404, Error: "HTTP 404 Not Found", ErrorKind: model.ErrorKindTerminal},
		},
		Findings: []model.Finding{state, node, gtm},
	}
	products.ComputeStats()
	about := &model.TemplateReport{
		Name:        "/about",
		Signature:   model.NewSignature(model.Literal("about")),
		MemberCount: 1,
		Pages: []model.PageSummary{
			{URL: "https://example.com/about", StatusCode: 200, TotalBytes: 10000},
		},
		Findings: []model.Finding{},
	}
	report.Templates[products.Name] = products
	report.Templates[about.Name] = about

	report.Summary = model.SiteSummary{
		TemplateCount:  2,
		URLCount:       4,
		PagesCrawled:   3,
		PagesFailed:    1,
		TotalHTMLBytes: 90000,
		FlaggedBytes:   54000,
		PrimaryBytes:   50000,
		SecondaryBytes: 4000,
		BytesByCategory: map[model.Category]int{
			model.CategoryJSONLD:       50000,
			model.CategoryInlineScript: 4000,
		},
		TopFindings: []model.Finding{state, gtm},
		SharedFindings: []model.SharedFinding{{
			Finding:   gtm,
			Pages:     []string{"https://example.com/about", "https://example.com/p/1"},
			Templates: []string{"/about", "/p/{id}"},
			Scope:     model.ScopeSiteWide,
		}},
	}
	return report
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, report *model.Report, opts ...SimpleWriterOption) string {
		t.Helper()
		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf, opts...).Write(report)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}
		return buf.String()
	}

	t.Run("writes report header", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		for _, want := range []string{"PAGEWEIGHT REPORT", "https://example.com", "run-123", "COMPLETE"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes summary and categories", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		for _, want := range []string{"SUMMARY", "52.7 KB (60.0%)", "JSON LD", "Inline Script"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "Inline SVG") {
			t.Error("expected empty categories to be hidden")
		}
	})

	t.Run("writes templates heaviest first", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		p := strings.Index(output, "/p/{id}")
		a := strings.Index(output, "/about ")
		if p < 0 || a < 0 || p > a {
			t.Errorf("expected /p/{id} before /about, got indexes %d and %d", p, a)
		}
	})

	t.Run("writes shared and failed pages", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "SHARED ELEMENTS") || !strings.Contains(output, "site-wide") {
			t.Error("expected the shared elements section")
		}
		if !strings.Contains(output, "FAILED PAGES") || !strings.Contains(output, "HTTP 404 Not Found") {
			t.Error("expected the failed pages section")
		}
	})

	t.Run("verbose lists template findings with excerpts", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport(), WithVerbose(true))
		if !strings.Contains(output, "[/p/{id}]") {
			t.Error("expected the per-template section")
		}
		if !strings.Contains(output, "> (function(w,d,s,l,i)") {
			t.Error("expected the excerpt")
		}
		if !strings.Contains(output, "props.pageProps") {
			t.Error("expected the subcomponent finding")
		}
	})

	t.Run("cancelled report and empty sections", func(t *testing.T) {
		t.Parallel()

		report := model.NewReport("run-0", "https://example.com", "urls.txt")
		report.Cancelled = true

		output := write(t, report)
		if !strings.Contains(output, "CANCELLED") {
			t.Error("expected the cancelled status")
		}
		if strings.Contains(output, "TOP FINDINGS") {
			t.Error("expected empty sections to be hidden")
		}

		output = write(t, report, WithShowEmpty(true))
		if !strings.Contains(output, "No findings") || !strings.Contains(output, "No failed pages") {
			t.Error("expected empty sections with WithShowEmpty")
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes a decodable report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got model.Report
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.RunID != "run-123" || len(got.Templates) != 2 {
			t.Errorf("unexpected report %+v", got)
		}
		if strings.Contains(buf.String(), "\n  ") {
			t.Error("expected compact output by default")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"run_id\"") {
			t.Error("expected indented output")
		}
	})

	t.Run("version envelope", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("v1.2.3")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got JSONReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Version != "v1.2.3" || got.Report == nil || got.Report.Site != "https://example.com" {
			t.Errorf("unexpected envelope %+v", got)
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables, chart and alert", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Page Weight Report",
			"## Summary",
			"```mermaid",
			"pie",
			"[!CAUTION]",
			"## Top Findings",
			"Google Tag Manager",
			"### `/p/{id}`",
			"## Shared Elements",
			"## Failed Pages",
			"<details>",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("clean site gets a tip", func(t *testing.T) {
		t.Parallel()

		report := model.NewReport("run-1", "https://example.com", "https://example.com/sitemap.xml")
		report.Summary.TotalHTMLBytes = 1000

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "[!TIP]") {
			t.Error("expected a tip alert")
		}
		if strings.Contains(output, "```mermaid") {
			t.Error("expected no chart without findings")
		}
		if strings.Contains(output, "## Failed Pages") {
			t.Error("expected no failed pages section")
		}
	})

	t.Run("cancelled run gets a warning", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Cancelled = true

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Error("expected a warning alert")
		}
	})
}

func TestExcelWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := NewExcelWriter(&buf).Write(createTestReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != buf.Len() || n == 0 {
		t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	want := []string{SheetSummary, SheetTemplates, SheetPages, SheetFindings, SheetShared}
	if got := f.GetSheetList(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected sheets %v, got %v", want, got)
	}

	rows, err := f.GetRows(SheetFindings)
	if err != nil {
		t.Fatalf("failed to read findings: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 findings, got %d rows", len(rows))
	}
	if rows[1][0] != "/p/{id}" || rows[1][3] != "50000" {
		t.Errorf("unexpected first finding row %v", rows[1])
	}

	templates, err := f.GetRows(SheetTemplates)
	if err != nil {
		t.Fatalf("failed to read templates: %v", err)
	}
	if len(templates) != 3 || templates[1][0] != "/p/{id}" {
		t.Errorf("unexpected templates sheet %v", templates)
	}
}

// failingWriter fails every write.
type failingWriter struct{}

func (failingWriter) Write(*model.Report) (int, error) {
	return 0, errors.New("disk full")
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to every writer", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		n, err := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js)).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("expected %d bytes, got %d", text.Len()+js.Len(), n)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var js bytes.Buffer
		_, err := NewMultiWriter(failingWriter{}, NewJSONWriter(&js)).Write(createTestReport())
		if err == nil {
			t.Error("expected an error")
		}
		if js.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	report := createTestReport()
	if Prepare(report, true) != report {
		t.Error("expected the report unchanged when secondary findings are included")
	}

	primary := Prepare(report, false)
	for _, f := range primary.Templates["/p/{id}"].Findings {
		if f.IsSecondary() {
			t.Errorf("unexpected secondary finding %+v", f)
		}
	}
	if len(primary.Summary.SharedFindings) != 0 {
		t.Errorf("expected shared secondary findings to be dropped, got %d", len(primary.Summary.SharedFindings))
	}
	if len(report.Templates["/p/{id}"].Findings) != 3 {
		t.Error("expected the original report to stay untouched")
	}
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KB"},
		{50000, "48.8 KB"},
		{2 * 1024 * 1024, "2.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestCategoryTitle(t *testing.T) {
	t.Parallel()

	tests := map[model.Category]string{
		model.CategoryInlineScript:       "Inline Script",
		model.CategoryJSONLD:             "JSON LD",
		model.CategoryInlineSVG:          "Inline SVG",
		model.CategoryDataURI:            "Data URI",
		model.CategoryHTMLComments:       "HTML Comments",
		model.CategoryDOMSubtree:         "DOM Subtree",
		model.CategoryExternalStylesheet: "External Stylesheet",
	}
	for c, want := range tests {
		if got := CategoryTitle(c); got != want {
			t.Errorf("CategoryTitle(%s): expected %q, got %q", c, want, got)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	t.Parallel()

	if got := FormatPercent(1, 0); got != "0.0%" {
		t.Errorf("expected 0.0%%, got %s", got)
	}
	if got := FormatPercent(54000, 90000); got != "60.0%" {
		t.Errorf("expected 60.0%%, got %s", got)
	}
}
