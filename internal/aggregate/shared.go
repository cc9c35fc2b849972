package aggregate

import (
	"sort"

	"github.com/nao1215/pageweight/internal/model"
)

// sharedIndex groups findings by fingerprint across analyzed pages.
type sharedIndex struct {
	// groups maps fingerprints to their group.
	groups map[string]*sharedGroup

	// pages holds every analyzed URL.
	pages map[string]struct{}

	// templatePages holds the analyzed URLs of each template.
	templatePages map[string]map[string]struct{}
}

type sharedGroup struct {
	first     model.Finding
	maxSize   int
	pages     map[string]struct{}
	templates map[string]struct{}
}

func newSharedIndex() *sharedIndex {
	return &sharedIndex{
		groups:        make(map[string]*sharedGroup),
		pages:         make(map[string]struct{}),
		templatePages: make(map[string]map[string]struct{}),
	}
}

func (s *sharedIndex) addPage(template, url string) {
	s.pages[url] = struct{}{}
	if s.templatePages[template] == nil {
		s.templatePages[template] = make(map[string]struct{})
	}
	s.templatePages[template][url] = struct{}{}
}

func (s *sharedIndex) addFinding(template string, f model.Finding) {
	fp := f.Fingerprint()
	g, ok := s.groups[fp]
	if !ok {
		g = &sharedGroup{
			first:     f,
			pages:     make(map[string]struct{}),
			templates: make(map[string]struct{}),
		}
		s.groups[fp] = g
	} else if f.URL < g.first.URL || (f.URL == g.first.URL && f.Position < g.first.Position) {
		// Keep the same representative whatever the insertion order.
		g.first = f
	}
	g.pages[f.URL] = struct{}{}
	g.templates[template] = struct{}{}
	g.maxSize = max(g.maxSize, f.SizeBytes)
}

// build returns the shared findings, primary first, then by size
// descending, then by fingerprint.
func (s *sharedIndex) build() []model.SharedFinding {
	out := make([]model.SharedFinding, 0, len(s.groups))
	for _, g := range s.groups {
		f := g.first
		f.SizeBytes = g.maxSize
		out = append(out, model.SharedFinding{
			Finding:   f,
			Pages:     sortedKeys(g.pages),
			Templates: sortedKeys(g.templates),
			Scope:     s.scope(g),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Finding, out[j].Finding
		if a.IsSecondary() != b.IsSecondary() {
			return !a.IsSecondary()
		}
		if a.SizeBytes != b.SizeBytes {
			return a.SizeBytes > b.SizeBytes
		}
		return a.Fingerprint() < b.Fingerprint()
	})
	return out
}

// scope labels how widely a group repeats. An element on a single page is
// page-specific even when that page is the only one crawled.
func (s *sharedIndex) scope(g *sharedGroup) model.Scope {
	pages := len(g.pages)
	switch {
	case pages <= 1:
		return model.ScopePageSpecific
	case pages == len(s.pages):
		return model.ScopeSiteWide
	case len(g.templates) == 1:
		for name := range g.templates {
			if pages == len(s.templatePages[name]) {
				return model.ScopeTemplateWide
			}
		}
	}
	return model.ScopeMultiPage
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
