package model

import "testing"

func TestTemplateSignature(t *testing.T) {
	t.Parallel()

	t.Run("renders literal and variable segments", func(t *testing.T) {
		t.Parallel()

		sig := NewSignature(Literal("blog"), Variable(), Literal("comments"))
		if got := sig.String(); got != "/blog/{id}/comments" {
			t.Errorf("expected /blog/{id}/comments, got %q", got)
		}
	})

	t.Run("root and unclassified render specially", func(t *testing.T) {
		t.Parallel()

		if got := NewSignature().String(); got != "/" {
			t.Errorf("expected root to render as /, got %q", got)
		}
		if !NewSignature().IsRoot() {
			t.Error("expected empty signature to be root")
		}
		if got := UnclassifiedSignature().String(); got != UnclassifiedKey {
			t.Errorf("expected %q, got %q", UnclassifiedKey, got)
		}
		if UnclassifiedSignature().IsRoot() {
			t.Error("unclassified signature must not be root")
		}
	})

	t.Run("equality requires equal segment count", func(t *testing.T) {
		t.Parallel()

		a := NewSignature(Literal("p"), Variable())
		b := NewSignature(Literal("p"), Variable(), Variable())
		if a.Equal(b) {
			t.Error("signatures of different length must not be equal")
		}
		if !a.Equal(NewSignature(Literal("p"), Variable())) {
			t.Error("identical signatures must be equal")
		}
	})

	t.Run("key distinguishes literal placeholder text from variables", func(t *testing.T) {
		t.Parallel()

		literal := NewSignature(Literal("{id}"))
		variable := NewSignature(Variable())
		if literal.String() != variable.String() {
			t.Fatalf("test precondition: both should render the same")
		}
		if literal.Key() == variable.Key() {
			t.Error("expected different keys")
		}
	})

	t.Run("WithVariable does not mutate the receiver", func(t *testing.T) {
		t.Parallel()

		sig := NewSignature(Literal("blog"), Literal("2024"))
		promoted := sig.WithVariable(1)
		if sig.Segments[1].IsVariable() {
			t.Error("original signature was mutated")
		}
		if !promoted.Segments[1].IsVariable() {
			t.Error("expected position 1 to be variable")
		}
	})
}

func TestTemplate(t *testing.T) {
	t.Parallel()

	tmpl := NewTemplate(NewSignature(Literal("about")))
	if err := tmpl.Add("https://example.com/about"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tmpl.Freeze()
	if err := tmpl.Add("https://example.com/about?x=1"); err != ErrTemplateFrozen {
		t.Errorf("expected ErrTemplateFrozen, got %v", err)
	}
	if tmpl.Size() != 1 {
		t.Errorf("expected 1 member, got %d", tmpl.Size())
	}
}
