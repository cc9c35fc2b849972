package template

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/nao1215/pageweight/internal/model"
)

// Default classifier heuristics.
const (
	// DefaultMinSlugLength is the shortest mixed digit/letter segment that
	// counts as a slug.
	DefaultMinSlugLength = 8

	// DefaultPromoteThreshold is the number of distinct literals a position
	// needs among siblings before it is promoted to a variable.
	DefaultPromoteThreshold = 2

	// minHexLength is the shortest token treated as a hex identifier.
	minHexLength = 16
)

var (
	uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexPattern  = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	datePattern = regexp.MustCompile(`^\d{4}[-_]\d{1,2}([-_]\d{1,2})?$`)
	slugPattern = regexp.MustCompile(`^[\p{L}\p{N}_-]+$`)
)

// errEmptyHost is returned for URLs without a host.
var errEmptyHost = errors.New("missing host")

// ClassifierOptions tunes the variable-segment heuristics.
type ClassifierOptions struct {
	// MinSlugLength is the minimum length of a segment mixing digits with
	// letters or hyphens before it is treated as a slug.
	MinSlugLength int `yaml:"min_slug_length"`

	// PromoteThreshold is the minimum number of distinct literal values at
	// one position, among URLs sharing every other position, that promotes
	// the position to a variable.
	PromoteThreshold int `yaml:"promote_threshold"`
}

// DefaultClassifierOptions returns the default heuristics.
func DefaultClassifierOptions() ClassifierOptions {
	return ClassifierOptions{
		MinSlugLength:    DefaultMinSlugLength,
		PromoteThreshold: DefaultPromoteThreshold,
	}
}

// Classifier maps URLs to template signatures.
//
// Classification is two-pass. Classify looks at one URL at a time and
// marks identifiers it can recognize on their own (numbers, UUIDs, hex
// tokens, dates and long slugs). Promote then looks across all signatures
// and turns positions that vary between siblings into variables.
// A Classifier holds no state between calls and is safe for concurrent use.
type Classifier struct {
	opts ClassifierOptions
}

// NewClassifier creates a Classifier. Zero option values fall back to the
// defaults.
func NewClassifier(opts ClassifierOptions) *Classifier {
	if opts.MinSlugLength <= 0 {
		opts.MinSlugLength = DefaultMinSlugLength
	}
	if opts.PromoteThreshold < 2 {
		opts.PromoteThreshold = DefaultPromoteThreshold
	}
	return &Classifier{opts: opts}
}

// Options returns the effective options.
func (c *Classifier) Options() ClassifierOptions {
	return c.opts
}

// Classify computes the pass-1 signature of a URL.
// Malformed URLs return the unclassified signature together with a
// *model.ClassificationError.
func (c *Classifier) Classify(rawURL string) (model.TemplateSignature, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return model.UnclassifiedSignature(), &model.ClassificationError{URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.UnclassifiedSignature(), &model.ClassificationError{
			URL: rawURL,
			Err: fmt.Errorf("unsupported scheme %q", u.Scheme),
		}
	}
	if u.Host == "" {
		return model.UnclassifiedSignature(), &model.ClassificationError{URL: rawURL, Err: errEmptyHost}
	}

	parts := splitPath(u.Path)
	segments := make([]model.Segment, 0, len(parts))
	for _, part := range parts {
		if c.isVariable(part) {
			segments = append(segments, model.Variable())
			continue
		}
		segments = append(segments, model.Literal(part))
	}
	return model.NewSignature(segments...), nil
}

// splitPath splits a URL path into non-empty segments.
// "/", "" and "//" all yield no segments, so they share the root template.
func splitPath(p string) []string {
	raw := strings.Split(p, "/")
	parts := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// isVariable applies the single-segment heuristics. A trailing file
// extension is ignored for the test, so "12345.html" is an identifier
// while "index.html" stays literal.
func (c *Classifier) isVariable(segment string) bool {
	stem := strings.TrimSuffix(segment, path.Ext(segment))
	if stem == "" {
		return false
	}

	switch {
	case isNumeric(stem):
		return true
	case uuidPattern.MatchString(stem):
		return true
	case len(stem) >= minHexLength && hexPattern.MatchString(stem):
		return true
	case datePattern.MatchString(stem):
		return true
	}
	return c.isSlug(stem)
}

// isSlug reports whether s mixes digits with letters or hyphens and is at
// least MinSlugLength characters long.
func (c *Classifier) isSlug(s string) bool {
	if len(s) < c.opts.MinSlugLength || !slugPattern.MatchString(s) {
		return false
	}

	var hasDigit, hasOther bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r), r == '-', r == '_':
			hasOther = true
		}
	}
	return hasDigit && hasOther
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Promote runs pass 2 over pass-1 signatures and returns the promoted
// signature for each input, index for index.
//
// Signatures are compared within groups of equal length. For every
// position p, signatures that agree on all other pass-1 positions form a
// sibling set; when the set holds at least PromoteThreshold distinct
// literals at p, p becomes a variable for every member of the set.
// Sibling sets are always built from the pass-1 signatures, so a position
// promoted for one set never makes unrelated sections siblings, and the
// result does not depend on input order.
func (c *Classifier) Promote(sigs []model.TemplateSignature) []model.TemplateSignature {
	// Work on distinct signatures; the URL count can be far larger.
	uniq := make([]model.TemplateSignature, 0)
	indexOf := make(map[string]int)
	inputIdx := make([]int, len(sigs))
	for i, sig := range sigs {
		key := sig.Key()
		idx, ok := indexOf[key]
		if !ok {
			idx = len(uniq)
			indexOf[key] = idx
			uniq = append(uniq, sig.Clone())
		}
		inputIdx[i] = idx
	}

	promoted := c.promotedPositions(uniq)
	for i, positions := range promoted {
		for _, p := range positions {
			uniq[i] = uniq[i].WithVariable(p)
		}
	}

	out := make([]model.TemplateSignature, len(sigs))
	for i, idx := range inputIdx {
		out[i] = uniq[idx].Clone()
	}
	return out
}

// promotedPositions returns, for each signature, the positions that vary
// among its siblings. sigs is not modified.
func (c *Classifier) promotedPositions(sigs []model.TemplateSignature) map[int][]int {
	maxLen := 0
	for _, s := range sigs {
		if !s.Unclassified && s.Len() > maxLen {
			maxLen = s.Len()
		}
	}

	promoted := make(map[int][]int)
	for p := 0; p < maxLen; p++ {
		// sibling key -> distinct literal values at p
		literals := make(map[string]map[string]struct{})
		for _, s := range sigs {
			if s.Unclassified || s.Len() <= p || s.Segments[p].IsVariable() {
				continue
			}
			key := s.WithVariable(p).Key()
			if literals[key] == nil {
				literals[key] = make(map[string]struct{})
			}
			literals[key][s.Segments[p].Value] = struct{}{}
		}

		for i, s := range sigs {
			if s.Unclassified || s.Len() <= p || s.Segments[p].IsVariable() {
				continue
			}
			if len(literals[s.WithVariable(p).Key()]) >= c.opts.PromoteThreshold {
				promoted[i] = append(promoted[i], p)
			}
		}
	}
	return promoted
}
