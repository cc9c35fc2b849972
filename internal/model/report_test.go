package model

import (
	"errors"
	"testing"
)

func TestSortFindings(t *testing.T) {
	t.Parallel()

	findings := []Finding{
		{URL: "https://example.com/b", Position: 3, SizeBytes: 100},
		{URL: "https://example.com/a", Position: 9, SizeBytes: 500},
		{URL: "https://example.com/b", Position: 1, SizeBytes: 100},
		{URL: "https://example.com/a", Position: 2, SizeBytes: 100},
	}
	SortFindings(findings)

	want := []struct {
		url string
		pos int
	}{
		{"https://example.com/a", 9},
		{"https://example.com/a", 2},
		{"https://example.com/b", 1},
		{"https://example.com/b", 3},
	}
	for i, w := range want {
		if findings[i].URL != w.url || findings[i].Position != w.pos {
			t.Errorf("index %d: expected %s@%d, got %s@%d",
				i, w.url, w.pos, findings[i].URL, findings[i].Position)
		}
	}
}

func TestComputeStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sizes  []int
		total  int
		max    int
		median int
	}{
		{name: "empty", sizes: nil},
		{name: "odd count", sizes: []int{5, 1, 3}, total: 9, max: 5, median: 3},
		{name: "even count", sizes: []int{10, 2, 4, 8}, total: 24, max: 10, median: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			findings := make([]Finding, len(tt.sizes))
			for i, s := range tt.sizes {
				findings[i] = Finding{SizeBytes: s}
			}
			stats := ComputeStats(findings)
			if stats.TotalBytes != tt.total || stats.MaxBytes != tt.max || stats.MedianBytes != tt.median {
				t.Errorf("got %+v, want total=%d max=%d median=%d", stats, tt.total, tt.max, tt.median)
			}
			if stats.Count != len(tt.sizes) {
				t.Errorf("expected count %d, got %d", len(tt.sizes), stats.Count)
			}
		})
	}

	t.Run("subcomponents do not add to total", func(t *testing.T) {
		t.Parallel()

		stats := ComputeStats([]Finding{
			{SizeBytes: 1000},
			{SizeBytes: 600, Subcomponent: true},
		})
		if stats.TotalBytes != 1000 {
			t.Errorf("expected total 1000, got %d", stats.TotalBytes)
		}
	})
}

func TestReportWithoutSecondary(t *testing.T) {
	t.Parallel()

	r := NewReport("run", "https://example.com", "https://example.com/sitemap.xml")
	r.Settings.IncludeSecondary = true
	r.Templates["/p/{id}"] = &TemplateReport{
		Name: "/p/{id}",
		Findings: []Finding{
			{SizeBytes: 900, Classification: Primary},
			{SizeBytes: 400, Classification: Secondary},
		},
	}
	r.Templates["/p/{id}"].ComputeStats()
	r.Summary.TopFindings = append([]Finding(nil), r.Templates["/p/{id}"].Findings...)
	r.Summary.SharedFindings = []SharedFinding{
		{Finding: Finding{Classification: Secondary}},
	}

	filtered := r.WithoutSecondary()

	if got := len(filtered.Templates["/p/{id}"].Findings); got != 1 {
		t.Errorf("expected 1 finding after filtering, got %d", got)
	}
	if got := filtered.Templates["/p/{id}"].Stats.TotalBytes; got != 900 {
		t.Errorf("expected recomputed total 900, got %d", got)
	}
	if len(filtered.Summary.SharedFindings) != 0 {
		t.Errorf("expected shared secondary findings to be removed")
	}
	if got := len(r.Templates["/p/{id}"].Findings); got != 2 {
		t.Errorf("original report was modified: %d findings", got)
	}
	if filtered.Settings.IncludeSecondary {
		t.Error("expected IncludeSecondary=false on filtered copy")
	}
}

func TestFetchError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := error(&FetchError{URL: "https://example.com", Kind: ErrorKindTransient, Err: cause})

	if !IsTransient(err) {
		t.Error("expected transient error")
	}
	if !errors.Is(err, cause) {
		t.Error("expected FetchError to unwrap to its cause")
	}
	if IsTransient(&FetchError{Kind: ErrorKindTerminal, StatusCode: 404}) {
		t.Error("terminal error reported as transient")
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases scheme and host", in: "HTTPS://Example.COM/Path", want: "https://example.com/Path"},
		{name: "drops fragment", in: "https://example.com/a#section", want: "https://example.com/a"},
		{name: "empty path becomes root", in: "https://example.com", want: "https://example.com/"},
		{name: "keeps query", in: "https://example.com/?q=1", want: "https://example.com/?q=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
