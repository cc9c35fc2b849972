package aggregate

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nao1215/pageweight/internal/model"
)

func productTemplate() *model.Template {
	t := model.NewTemplate(model.NewSignature(model.Literal("p"), model.Variable()))
	_ = t.Add("https://example.com/p/1")
	_ = t.Add("https://example.com/p/2")
	_ = t.Add("https://example.com/p/3")
	return t
}

func rootTemplate() *model.Template {
	t := model.NewTemplate(model.NewSignature())
	_ = t.Add("https://example.com/")
	return t
}

func okResult(url string, size int, source model.Source) *model.CrawlResult {
	return &model.CrawlResult{
		URL:        url,
		Body:       make([]byte, size),
		StatusCode: 200,
		Source:     source,
	}
}

func finding(url string, category model.Category, id string, size, position int) model.Finding {
	return model.Finding{
		URL:            url,
		Element:        model.Element{Tag: "script", Identifier: id},
		Position:       position,
		SizeBytes:      size,
		Classification: model.Primary,
		Category:       category,
	}
}

func analysis(url string, total int, findings ...model.Finding) *model.PageAnalysis {
	return &model.PageAnalysis{URL: url, TotalBytes: total, Findings: findings}
}

type addition struct {
	template *model.Template
	result   *model.CrawlResult
	analysis *model.PageAnalysis
}

func fixture() (*model.Template, *model.Template, []addition) {
	products, root := productTemplate(), rootTemplate()
	adds := []addition{
		{
			template: root,
			result:   okResult("https://example.com/", 10000, model.SourceNetwork),
			analysis: analysis("https://example.com/", 10000,
				finding("https://example.com/", model.CategoryInlineScript, "<script id=\"gtm\">", 3000, 4),
				finding("https://example.com/", model.CategoryInlineStyle, "<style>", 800, 2),
			),
		},
		{
			template: products,
			result:   okResult("https://example.com/p/1", 20000, model.SourceCache),
			analysis: analysis("https://example.com/p/1", 20000,
				finding("https://example.com/p/1", model.CategoryInlineScript, "<script id=\"gtm\">", 3000, 4),
				finding("https://example.com/p/1", model.CategoryJSONLD, "<script type=\"application/ld+json\">", 5000, 9),
			),
		},
		{
			template: products,
			result:   okResult("https://example.com/p/2", 18000, model.SourceNetwork),
			analysis: analysis("https://example.com/p/2", 18000,
				finding("https://example.com/p/2", model.CategoryInlineScript, "<script id=\"gtm\">", 3100, 4),
				finding("https://example.com/p/2", model.CategoryJSONLD, "<script type=\"application/ld+json\">", 4000, 9),
			),
		},
	}
	return products, root, adds
}

func build(agg *Aggregator) *model.Report {
	return agg.Build(model.NewReport("run", "https://example.com", "https://example.com/sitemap.xml"))
}

func TestBuildIndependentOfOrder(t *testing.T) {
	t.Parallel()

	products, root, adds := fixture()

	forward := New()
	forward.AddTemplate(root, []string{"https://example.com/"})
	forward.AddTemplate(products, []string{"https://example.com/p/1", "https://example.com/p/2"})
	for _, a := range adds {
		forward.Add(a.template, a.result, a.analysis)
	}

	backward := New()
	backward.AddTemplate(root, []string{"https://example.com/"})
	backward.AddTemplate(products, []string{"https://example.com/p/1", "https://example.com/p/2"})
	for i := len(adds) - 1; i >= 0; i-- {
		backward.Add(adds[i].template, adds[i].result, adds[i].analysis)
	}

	a, b := build(forward), build(backward)
	if !reflect.DeepEqual(a.Templates, b.Templates) {
		t.Error("expected identical template reports for different completion orders")
	}
	if !reflect.DeepEqual(a.Summary, b.Summary) {
		t.Error("expected identical summaries for different completion orders")
	}
}

func TestBuildTemplateReports(t *testing.T) {
	t.Parallel()

	products, root, adds := fixture()
	agg := New()
	agg.AddTemplate(products, []string{"https://example.com/p/2", "https://example.com/p/1"})
	for _, a := range adds {
		agg.Add(a.template, a.result, a.analysis)
	}
	r := build(agg)

	if len(r.Templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(r.Templates))
	}
	tr, ok := r.Templates["/p/{id}"]
	if !ok {
		t.Fatalf("expected template /p/{id}, got %v", r.TemplateNames())
	}
	if tr.MemberCount != 3 {
		t.Errorf("expected 3 members, got %d", tr.MemberCount)
	}
	if len(tr.Pages) != 2 || tr.Pages[0].URL != "https://example.com/p/2" {
		t.Errorf("expected pages in sample order, got %+v", tr.Pages)
	}

	wantSizes := []int{5000, 4000, 3100, 3000}
	if len(tr.Findings) != len(wantSizes) {
		t.Fatalf("expected %d findings, got %d", len(wantSizes), len(tr.Findings))
	}
	for i, want := range wantSizes {
		if tr.Findings[i].SizeBytes != want {
			t.Errorf("finding %d: expected size %d, got %d", i, want, tr.Findings[i].SizeBytes)
		}
	}
	if tr.Stats.TotalBytes != 15100 || tr.Stats.MaxBytes != 5000 || tr.Stats.MedianBytes != 3550 {
		t.Errorf("unexpected stats %+v", tr.Stats)
	}

	if _, ok := r.Templates[root.Name()]; !ok {
		t.Errorf("expected root template %q", root.Name())
	}
}

func TestBuildSummary(t *testing.T) {
	t.Parallel()

	products, _, adds := fixture()
	agg := New(WithTopN(2))
	for _, a := range adds {
		agg.Add(a.template, a.result, a.analysis)
	}
	agg.Add(products,
		model.NewFailedResult("https://example.com/p/3", model.ErrorKindTerminal, 404,
			errors.New("fetch https://example.com/p/3: terminal failure: HTTP 404"), 1),
		nil,
	)
	r := build(agg)
	s := r.Summary

	if s.TemplateCount != 2 || s.URLCount != 4 {
		t.Errorf("unexpected template/url counts %d/%d", s.TemplateCount, s.URLCount)
	}
	if s.PagesCrawled != 4 || s.PagesFailed != 1 || s.PagesFromCache != 1 {
		t.Errorf("unexpected page counts %+v", s)
	}
	if s.TotalHTMLBytes != 48000 {
		t.Errorf("expected 48000 HTML bytes, got %d", s.TotalHTMLBytes)
	}
	if s.FlaggedBytes != 18900 || s.PrimaryBytes != 18900 || s.SecondaryBytes != 0 {
		t.Errorf("unexpected byte totals %+v", s)
	}
	if s.BytesByCategory[model.CategoryJSONLD] != 9000 {
		t.Errorf("expected 9000 json-ld bytes, got %d", s.BytesByCategory[model.CategoryJSONLD])
	}
	if len(s.TopFindings) != 2 || s.TopFindings[0].SizeBytes != 5000 {
		t.Errorf("unexpected top findings %+v", s.TopFindings)
	}

	failed := r.FailedPages()
	if len(failed) != 1 || failed[0].URL != "https://example.com/p/3" {
		t.Fatalf("expected the 404 page to be reported, got %+v", failed)
	}
	if failed[0].StatusCode != 404 || failed[0].ErrorKind != model.ErrorKindTerminal || failed[0].FindingCount != 0 {
		t.Errorf("unexpected failed page %+v", failed[0])
	}
}

func TestBuildParseErrorPage(t *testing.T) {
	t.Parallel()

	root := rootTemplate()
	agg := New()
	agg.Add(root, okResult("https://example.com/", 100, model.SourceNetwork), &model.PageAnalysis{
		URL:        "https://example.com/",
		TotalBytes: 100,
		ParseError: "parse https://example.com/: payload is not HTML",
		Findings:   []model.Finding{},
	})
	r := build(agg)

	pages := r.Templates["/"].Pages
	if len(pages) != 1 || pages[0].ErrorKind != model.ErrorKindParse {
		t.Fatalf("expected a parse failure, got %+v", pages)
	}
	if r.Summary.PagesFailed != 1 {
		t.Errorf("expected 1 failed page, got %d", r.Summary.PagesFailed)
	}
}

func TestSharedFindingScope(t *testing.T) {
	t.Parallel()

	_, _, adds := fixture()
	agg := New()
	for _, a := range adds {
		agg.Add(a.template, a.result, a.analysis)
	}
	r := build(agg)

	scopes := make(map[string]model.SharedFinding)
	for _, sf := range r.Summary.SharedFindings {
		scopes[sf.Finding.Fingerprint()] = sf
	}

	tests := []struct {
		fingerprint string
		scope       model.Scope
		pages       int
		size        int
	}{
		{`inline-script::<script id="gtm">`, model.ScopeSiteWide, 3, 3100},
		{`json-ld::<script type="application/ld+json">`, model.ScopeTemplateWide, 2, 5000},
		{`inline-style::<style>`, model.ScopePageSpecific, 1, 800},
	}
	for _, tt := range tests {
		sf, ok := scopes[tt.fingerprint]
		if !ok {
			t.Errorf("missing shared finding %s", tt.fingerprint)
			continue
		}
		if sf.Scope != tt.scope {
			t.Errorf("%s: expected scope %s, got %s", tt.fingerprint, tt.scope, sf.Scope)
		}
		if len(sf.Pages) != tt.pages {
			t.Errorf("%s: expected %d pages, got %d", tt.fingerprint, tt.pages, len(sf.Pages))
		}
		if sf.Finding.SizeBytes != tt.size {
			t.Errorf("%s: expected size %d, got %d", tt.fingerprint, tt.size, sf.Finding.SizeBytes)
		}
	}

	if r.Summary.SharedFindings[0].Finding.SizeBytes != 5000 {
		t.Errorf("expected the largest shared finding first, got %+v", r.Summary.SharedFindings[0])
	}
}

func TestSharedFindingMultiPage(t *testing.T) {
	t.Parallel()

	products := productTemplate()
	agg := New()
	for _, u := range []string{"https://example.com/p/1", "https://example.com/p/2", "https://example.com/p/3"} {
		var findings []model.Finding
		if u != "https://example.com/p/3" {
			findings = append(findings, finding(u, model.CategoryInlineSVG, "<svg>", 1500, 7))
		}
		agg.Add(products, okResult(u, 5000, model.SourceNetwork), analysis(u, 5000, findings...))
	}
	r := build(agg)

	if len(r.Summary.SharedFindings) != 1 {
		t.Fatalf("expected 1 shared finding, got %d", len(r.Summary.SharedFindings))
	}
	if got := r.Summary.SharedFindings[0].Scope; got != model.ScopeMultiPage {
		t.Errorf("expected %s, got %s", model.ScopeMultiPage, got)
	}
}

func TestBuildEmptyTemplate(t *testing.T) {
	t.Parallel()

	agg := New()
	agg.AddTemplate(productTemplate(), nil)
	r := build(agg)

	tr, ok := r.Templates["/p/{id}"]
	if !ok {
		t.Fatal("expected a registered template without pages to be reported")
	}
	if len(tr.Pages) != 0 || len(tr.Findings) != 0 || tr.Stats.Count != 0 {
		t.Errorf("expected an empty template report, got %+v", tr)
	}
}
