package template

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nao1215/pageweight/internal/model"
)

func TestGrouper(t *testing.T) {
	t.Parallel()

	t.Run("groups URLs by template in discovery order", func(t *testing.T) {
		t.Parallel()

		g := NewGrouper()
		for _, u := range []string{
			"https://example.com/p/1",
			"https://example.com/p/2",
			"https://example.com/p/3",
			"https://example.com/about",
		} {
			if err := g.Ingest(u); err != nil {
				t.Fatalf("ingest %s: %v", u, err)
			}
		}
		g.Freeze()

		templates := g.Templates()
		if len(templates) != 2 {
			t.Fatalf("expected 2 templates, got %d", len(templates))
		}
		if templates[0].Name() != "/p/{id}" || templates[0].Size() != 3 {
			t.Errorf("expected /p/{id} with 3 members, got %s with %d", templates[0].Name(), templates[0].Size())
		}
		if templates[1].Name() != "/about" || templates[1].Size() != 1 {
			t.Errorf("expected /about with 1 member, got %s with %d", templates[1].Name(), templates[1].Size())
		}
	})

	t.Run("each section keeps its own template", func(t *testing.T) {
		t.Parallel()

		g := NewGrouper()
		for _, u := range []string{
			"https://example.com/blog/post-a",
			"https://example.com/blog/post-b",
			"https://example.com/docs/intro",
			"https://example.com/docs/guide",
			"https://example.com/about",
			"https://example.com/contact",
		} {
			if err := g.Ingest(u); err != nil {
				t.Fatalf("ingest %s: %v", u, err)
			}
		}
		g.Freeze()

		got := make(map[string]int)
		for _, tmpl := range g.Templates() {
			got[tmpl.Name()] = tmpl.Size()
		}
		want := map[string]int{"/blog/{id}": 2, "/docs/{id}": 2, "/{id}": 2}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected templates %v, got %v", want, got)
		}
	})

	t.Run("every URL belongs to exactly one template", func(t *testing.T) {
		t.Parallel()

		urls := []string{
			"https://example.com/",
			"https://example.com/blog/2024/post-a",
			"https://example.com/blog/2023/post-b",
			"https://example.com/blog",
			"not a url",
		}
		g := NewGrouper()
		for _, u := range urls {
			if err := g.Ingest(u); err != nil {
				t.Fatal(err)
			}
		}
		g.Freeze()

		count := make(map[string]int)
		for _, tmpl := range g.Templates() {
			for _, m := range tmpl.Members {
				count[m]++
			}
		}
		for _, u := range urls {
			if count[u] != 1 {
				t.Errorf("%q appears in %d templates", u, count[u])
			}
		}
	})

	t.Run("malformed URLs go to unclassified", func(t *testing.T) {
		t.Parallel()

		g := NewGrouper()
		_ = g.Ingest("mailto:someone@example.com")
		_ = g.Ingest("https://example.com/ok")
		g.Freeze()

		tmpl, ok := g.Lookup("mailto:someone@example.com")
		if !ok {
			t.Fatal("malformed URL was dropped")
		}
		if tmpl.Name() != model.UnclassifiedKey {
			t.Errorf("expected unclassified template, got %s", tmpl.Name())
		}
		if len(g.Errors()) != 1 {
			t.Errorf("expected 1 recorded error, got %d", len(g.Errors()))
		}
	})

	t.Run("duplicates are ignored", func(t *testing.T) {
		t.Parallel()

		g := NewGrouper()
		_ = g.Ingest("https://example.com/about")
		_ = g.Ingest("https://EXAMPLE.com/about#team")
		if got := g.Stats().URLs; got != 1 {
			t.Errorf("expected 1 URL, got %d", got)
		}
	})

	t.Run("ingest after freeze fails", func(t *testing.T) {
		t.Parallel()

		g := NewGrouper()
		g.Freeze()
		if err := g.Ingest("https://example.com/late"); !errors.Is(err, model.ErrTemplateFrozen) {
			t.Errorf("expected ErrTemplateFrozen, got %v", err)
		}
	})

	t.Run("path filters", func(t *testing.T) {
		t.Parallel()

		g := NewGrouper(
			WithIgnorePatterns([]string{"/admin/*", "*.pdf"}),
		)
		for _, u := range []string{
			"https://example.com/admin/users",
			"https://example.com/docs/guide.pdf",
			"https://example.com/docs/guide",
		} {
			_ = g.Ingest(u)
		}
		stats := g.Stats()
		if stats.URLs != 1 || stats.Skipped != 2 {
			t.Errorf("expected 1 URL and 2 skipped, got %+v", stats)
		}

		follow := NewGrouper(WithFollowPatterns([]string{"/blog/*"}))
		_ = follow.Ingest("https://example.com/blog/post")
		_ = follow.Ingest("https://example.com/shop/item")
		if got := follow.Stats().URLs; got != 1 {
			t.Errorf("expected 1 followed URL, got %d", got)
		}
	})
}

func TestGrouperSample(t *testing.T) {
	t.Parallel()

	t.Run("sample is deterministic and idempotent", func(t *testing.T) {
		t.Parallel()

		g := NewGrouper()
		for _, u := range []string{
			"https://example.com/p/1",
			"https://example.com/p/2",
			"https://example.com/p/3",
		} {
			_ = g.Ingest(u)
		}
		tmpl := g.Templates()[0]

		first := g.Sample(tmpl, 2)
		second := g.Sample(tmpl, 2)
		want := []string{"https://example.com/p/1", "https://example.com/p/2"}
		if !reflect.DeepEqual(first, want) {
			t.Errorf("expected %v, got %v", want, first)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("repeated sample differs: %v vs %v", first, second)
		}
		if tmpl.Size() != 3 {
			t.Errorf("sampling changed membership: %d", tmpl.Size())
		}
		if !tmpl.Frozen() {
			t.Error("expected sampling to freeze the template")
		}
	})

	t.Run("n larger than membership", func(t *testing.T) {
		t.Parallel()

		g := NewGrouper()
		_ = g.Ingest("https://example.com/about")
		g.Freeze()
		if got := g.Sample(g.Templates()[0], 5); len(got) != 1 {
			t.Errorf("expected 1 sample, got %d", len(got))
		}
		if got := g.Sample(g.Templates()[0], 0); got != nil {
			t.Errorf("expected nil for n=0, got %v", got)
		}
	})

	t.Run("homepage is the first root sample", func(t *testing.T) {
		t.Parallel()

		g := NewGrouper()
		_ = g.Ingest("https://example.com/?utm_source=x")
		_ = g.Ingest("https://example.com/")
		g.Freeze()

		root := g.Templates()[0]
		got := g.Sample(root, 1)
		if len(got) != 1 || got[0] != "https://example.com/" {
			t.Errorf("expected homepage first, got %v", got)
		}
	})
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/admin/*", "/admin/dashboard", true},
		{"/admin/*", "/admin", true},
		{"/admin/*", "/administrator", false},
		{"*.pdf", "/docs/file.pdf", true},
		{"/api/v?", "/api/v1", true},
		{"/api/v?", "/api/v10", false},
		{"*login*", "/user/login", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}
