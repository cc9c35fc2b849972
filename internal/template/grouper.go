package template

import (
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nao1215/pageweight/internal/model"
)

// Grouper assigns URLs to templates and selects the samples to crawl.
//
// URLs are ingested first. Freeze then runs the cross-URL promotion pass,
// regroups every URL under its final signature and freezes the templates.
// Sampling is only meaningful after Freeze; Sample freezes implicitly.
type Grouper struct {
	// classifier computes signatures.
	classifier *Classifier

	// logger receives classification warnings.
	logger *slog.Logger

	// ignorePatterns are path globs whose URLs are skipped at ingest.
	ignorePatterns []string

	// followPatterns, if set, restrict ingest to matching paths.
	followPatterns []string

	// entries are the ingested URLs in discovery order.
	entries []entry

	// seen holds normalized URLs already ingested.
	seen map[string]struct{}

	// templates are kept in first-discovery order.
	templates []*model.Template

	// index maps signature keys to templates.
	index map[string]*model.Template

	// errs collects classification errors.
	errs []error

	// skipped counts URLs dropped by the path filters.
	skipped int

	// frozen is set by Freeze.
	frozen bool

	// mutex protects all of the above.
	mutex sync.Mutex
}

// entry is one ingested URL with its pass-1 signature.
type entry struct {
	url string
	sig model.TemplateSignature
}

// GrouperOption configures a Grouper.
type GrouperOption func(*Grouper)

// WithClassifier sets the classifier.
func WithClassifier(c *Classifier) GrouperOption {
	return func(g *Grouper) {
		g.classifier = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GrouperOption {
	return func(g *Grouper) {
		g.logger = logger
	}
}

// WithIgnorePatterns sets URL path patterns to skip.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
func WithIgnorePatterns(patterns []string) GrouperOption {
	return func(g *Grouper) {
		g.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts ingest to paths matching at least one
// pattern. Empty means all paths are allowed.
func WithFollowPatterns(patterns []string) GrouperOption {
	return func(g *Grouper) {
		g.followPatterns = patterns
	}
}

// NewGrouper creates a Grouper.
func NewGrouper(opts ...GrouperOption) *Grouper {
	g := &Grouper{
		classifier: NewClassifier(DefaultClassifierOptions()),
		logger:     slog.Default(),
		seen:       make(map[string]struct{}),
		index:      make(map[string]*model.Template),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Ingest assigns a URL to its template. Duplicates (after normalization)
// and URLs excluded by the path filters are ignored. A malformed URL goes
// to the unclassified template and its error is recorded, so Ingest only
// fails with model.ErrTemplateFrozen once the grouper is frozen.
func (g *Grouper) Ingest(rawURL string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.frozen {
		return model.ErrTemplateFrozen
	}

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil
	}

	normalized := model.NormalizeURL(rawURL)
	if _, ok := g.seen[normalized]; ok {
		return nil
	}

	sig, err := g.classifier.Classify(rawURL)
	if err != nil {
		g.logger.Debug("unclassified URL", "url", rawURL, "error", err)
		g.errs = append(g.errs, err)
	} else if !g.shouldInclude(rawURL) {
		g.skipped++
		return nil
	}

	g.seen[normalized] = struct{}{}
	g.entries = append(g.entries, entry{url: rawURL, sig: sig})
	// Membership cannot fail here: templates are only frozen by Freeze.
	_ = g.templateFor(sig).Add(rawURL)
	return nil
}

// templateFor returns the template for sig, creating it if needed.
func (g *Grouper) templateFor(sig model.TemplateSignature) *model.Template {
	key := sig.Key()
	if t, ok := g.index[key]; ok {
		return t
	}
	t := model.NewTemplate(sig)
	g.index[key] = t
	g.templates = append(g.templates, t)
	return t
}

// Freeze runs the promotion pass, regroups the URLs under their final
// signatures and freezes every template. Calling Freeze again is a no-op.
func (g *Grouper) Freeze() {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.freezeLocked()
}

func (g *Grouper) freezeLocked() {
	if g.frozen {
		return
	}

	sigs := make([]model.TemplateSignature, len(g.entries))
	for i, e := range g.entries {
		sigs[i] = e.sig
	}
	promoted := g.classifier.Promote(sigs)

	// Templates whose signature survives promotion keep their identity, so
	// a *model.Template obtained before Freeze stays valid.
	previous := g.index
	g.templates = nil
	g.index = make(map[string]*model.Template)
	for i, e := range g.entries {
		g.entries[i].sig = promoted[i]
		key := promoted[i].Key()
		if _, ok := g.index[key]; !ok {
			if t, found := previous[key]; found {
				t.Members = make([]string, 0)
				g.index[key] = t
				g.templates = append(g.templates, t)
			}
		}
		_ = g.templateFor(promoted[i]).Add(e.url)
	}
	for _, t := range g.templates {
		t.Freeze()
	}
	g.frozen = true

	g.logger.Debug("templates frozen", "urls", len(g.entries), "templates", len(g.templates))
}

// Templates returns the templates in first-discovery order.
func (g *Grouper) Templates() []*model.Template {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	out := make([]*model.Template, len(g.templates))
	copy(out, g.templates)
	return out
}

// Lookup returns the template a URL was assigned to.
func (g *Grouper) Lookup(rawURL string) (*model.Template, bool) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for _, t := range g.templates {
		for _, m := range t.Members {
			if m == rawURL {
				return t, true
			}
		}
	}
	return nil, false
}

// Sample returns up to n members of t in discovery order. The root
// template always offers its bare homepage URL first. Sample never changes
// membership, so repeated calls return the same URLs.
func (g *Grouper) Sample(t *model.Template, n int) []string {
	g.mutex.Lock()
	g.freezeLocked()
	g.mutex.Unlock()

	if t == nil || n <= 0 {
		return nil
	}

	members := make([]string, len(t.Members))
	copy(members, t.Members)
	if t.Signature.IsRoot() {
		members = homepageFirst(members)
	}

	if n > len(members) {
		n = len(members)
	}
	return members[:n]
}

// homepageFirst moves the first query-less root URL to the front.
func homepageFirst(members []string) []string {
	for i, m := range members {
		u, err := url.Parse(m)
		if err != nil || u.RawQuery != "" {
			continue
		}
		if i == 0 {
			return members
		}
		out := make([]string, 0, len(members))
		out = append(out, m)
		out = append(out, members[:i]...)
		out = append(out, members[i+1:]...)
		return out
	}
	return members
}

// Errors returns the classification errors recorded during ingest.
func (g *Grouper) Errors() []error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	out := make([]error, len(g.errs))
	copy(out, g.errs)
	return out
}

// GrouperStats contains grouping statistics.
type GrouperStats struct {
	// URLs is the number of distinct URLs ingested.
	URLs int

	// Templates is the number of templates.
	Templates int

	// Unclassified is the number of malformed URLs.
	Unclassified int

	// Skipped is the number of URLs excluded by path filters.
	Skipped int
}

// Stats returns current grouping statistics.
func (g *Grouper) Stats() GrouperStats {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return GrouperStats{
		URLs:         len(g.entries),
		Templates:    len(g.templates),
		Unclassified: len(g.errs),
		Skipped:      g.skipped,
	}
}

// shouldInclude checks a URL against the ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, include it
func (g *Grouper) shouldInclude(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range g.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(g.followPatterns) > 0 {
		for _, pattern := range g.followPatterns {
			if matchPattern(pattern, p) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, p string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(p, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, p)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also match the last path element.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(p))
		if err == nil && matched {
			return true
		}
	}

	return false
}
