package template

import (
	"errors"
	"testing"

	"github.com/nao1215/pageweight/internal/model"
)

func TestClassifierClassify(t *testing.T) {
	t.Parallel()

	c := NewClassifier(DefaultClassifierOptions())

	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "root", url: "https://example.com/", want: "/"},
		{name: "empty path", url: "https://example.com", want: "/"},
		{name: "literal path", url: "https://example.com/about", want: "/about"},
		{name: "trailing slash", url: "https://example.com/about/", want: "/about"},
		{name: "numeric id", url: "https://example.com/p/123", want: "/p/{id}"},
		{name: "uuid", url: "https://example.com/orders/123e4567-e89b-12d3-a456-426614174000", want: "/orders/{id}"},
		{name: "hex token", url: "https://example.com/c/9f86d081884c7d65", want: "/c/{id}"},
		{name: "date", url: "https://example.com/archive/2024-01-15", want: "/archive/{id}"},
		{name: "long mixed slug", url: "https://example.com/products/shoe-42-blue", want: "/products/{id}"},
		{name: "short mixed token stays literal", url: "https://example.com/api/v2", want: "/api/v2"},
		{name: "hyphenated words stay literal", url: "https://example.com/blog/post-a", want: "/blog/post-a"},
		{name: "file extension is kept", url: "https://example.com/index.html", want: "/index.html"},
		{name: "numeric file", url: "https://example.com/items/12345.html", want: "/items/{id}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sig, err := c.Classify(tt.url)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := sig.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("malformed URLs are unclassified", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{"://bad", "ftp://example.com/file", "/relative/path", "https://%zz"} {
			sig, err := c.Classify(raw)
			if err == nil {
				t.Errorf("expected error for %q", raw)
				continue
			}
			var ce *model.ClassificationError
			if !errors.As(err, &ce) {
				t.Errorf("expected ClassificationError for %q, got %T", raw, err)
			}
			if !sig.Unclassified {
				t.Errorf("expected unclassified signature for %q", raw)
			}
		}
	})
}

func TestClassifierPromote(t *testing.T) {
	t.Parallel()

	c := NewClassifier(DefaultClassifierOptions())

	classifyAll := func(t *testing.T, urls ...string) []model.TemplateSignature {
		t.Helper()
		sigs := make([]model.TemplateSignature, len(urls))
		for i, u := range urls {
			sig, err := c.Classify(u)
			if err != nil {
				t.Fatalf("classify %s: %v", u, err)
			}
			sigs[i] = sig
		}
		return c.Promote(sigs)
	}

	t.Run("siblings with distinct literals collapse", func(t *testing.T) {
		t.Parallel()

		got := classifyAll(t,
			"https://example.com/blog/2024/post-a",
			"https://example.com/blog/2023/post-b",
		)
		if !got[0].Equal(got[1]) {
			t.Fatalf("expected equal signatures, got %s and %s", got[0], got[1])
		}
		if got[0].String() != "/blog/{id}/{id}" {
			t.Errorf("expected /blog/{id}/{id}, got %s", got[0])
		}
	})

	t.Run("a lone URL is not promoted", func(t *testing.T) {
		t.Parallel()

		got := classifyAll(t, "https://example.com/blog/2024/post-a")
		if got[0].String() != "/blog/{id}/post-a" {
			t.Errorf("expected /blog/{id}/post-a, got %s", got[0])
		}
	})

	t.Run("different lengths never merge", func(t *testing.T) {
		t.Parallel()

		got := classifyAll(t,
			"https://example.com/p/1",
			"https://example.com/p/2",
			"https://example.com/about",
		)
		if got[0].String() != "/p/{id}" || got[2].String() != "/about" {
			t.Errorf("unexpected signatures: %s, %s", got[0], got[2])
		}
	})

	t.Run("positions varying across shared literals are both promoted", func(t *testing.T) {
		t.Parallel()

		got := classifyAll(t,
			"https://example.com/shoes/red",
			"https://example.com/shoes/blue",
			"https://example.com/hats/red",
			"https://example.com/hats/blue",
		)
		for i := range got {
			if got[i].String() != "/{id}/{id}" {
				t.Errorf("index %d: expected /{id}/{id}, got %s", i, got[i])
			}
		}
	})

	t.Run("sibling sections stay separate", func(t *testing.T) {
		t.Parallel()

		got := classifyAll(t,
			"https://example.com/blog/post-a",
			"https://example.com/blog/post-b",
			"https://example.com/docs/intro",
			"https://example.com/docs/guide",
		)
		want := []string{"/blog/{id}", "/blog/{id}", "/docs/{id}", "/docs/{id}"}
		for i := range got {
			if got[i].String() != want[i] {
				t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
			}
		}
	})

	t.Run("a promoted position does not join other sections", func(t *testing.T) {
		t.Parallel()

		// Only /blog has varying children; /docs/intro must not be pulled
		// into /{id}/{id} through the promoted /blog/{id}.
		got := classifyAll(t,
			"https://example.com/blog/post-a",
			"https://example.com/blog/post-b",
			"https://example.com/docs/intro",
		)
		if got[0].String() != "/blog/{id}" {
			t.Errorf("expected /blog/{id}, got %s", got[0])
		}
		if got[2].String() != "/docs/intro" {
			t.Errorf("expected /docs/intro, got %s", got[2])
		}
	})

	t.Run("result does not depend on input order", func(t *testing.T) {
		t.Parallel()

		a := classifyAll(t,
			"https://example.com/docs/intro",
			"https://example.com/docs/setup",
			"https://example.com/team",
		)
		b := classifyAll(t,
			"https://example.com/team",
			"https://example.com/docs/setup",
			"https://example.com/docs/intro",
		)
		if !a[0].Equal(b[2]) || !a[1].Equal(b[1]) || !a[2].Equal(b[0]) {
			t.Errorf("order-dependent result: %v vs %v", a, b)
		}
	})

	t.Run("threshold is configurable", func(t *testing.T) {
		t.Parallel()

		strict := NewClassifier(ClassifierOptions{PromoteThreshold: 3})
		sigs := make([]model.TemplateSignature, 0)
		for _, u := range []string{"https://example.com/docs/intro", "https://example.com/docs/setup"} {
			sig, err := strict.Classify(u)
			if err != nil {
				t.Fatal(err)
			}
			sigs = append(sigs, sig)
		}
		got := strict.Promote(sigs)
		if got[0].Equal(got[1]) {
			t.Errorf("expected no promotion with threshold 3, got %s", got[0])
		}
	})
}
