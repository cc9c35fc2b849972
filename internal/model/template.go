package model

// Template is a group of URLs that share the same structural path shape.
// Members keep their discovery order. Once a template is frozen, sampling
// may begin and membership no longer changes.
type Template struct {
	// Signature identifies the template.
	Signature TemplateSignature `json:"signature"`

	// Members are the member URLs in discovery order.
	Members []string `json:"members"`

	// frozen is set when sampling begins.
	frozen bool
}

// NewTemplate creates an empty template for the given signature.
func NewTemplate(sig TemplateSignature) *Template {
	return &Template{
		Signature: sig,
		Members:   make([]string, 0),
	}
}

// Name returns the human-readable template name, e.g. "/p/{id}".
func (t *Template) Name() string {
	return t.Signature.String()
}

// Size returns the number of member URLs.
func (t *Template) Size() int {
	return len(t.Members)
}

// Add appends a member URL. It returns ErrTemplateFrozen after Freeze.
func (t *Template) Add(url string) error {
	if t.frozen {
		return ErrTemplateFrozen
	}
	t.Members = append(t.Members, url)
	return nil
}

// Freeze marks the template as frozen.
func (t *Template) Freeze() {
	t.frozen = true
}

// Frozen reports whether the template is frozen.
func (t *Template) Frozen() bool {
	return t.frozen
}
