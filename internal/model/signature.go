package model

import "strings"

// SegmentKind tells whether a path segment is fixed vocabulary or an
// identifier that varies between pages of the same template.
type SegmentKind int

const (
	// SegmentLiteral is a fixed path segment such as "blog" or "about".
	SegmentLiteral SegmentKind = iota

	// SegmentVariable is a path segment that holds an identifier, slug or
	// other value that changes from page to page.
	SegmentVariable
)

// VariablePlaceholder is how a variable segment is rendered in a signature.
const VariablePlaceholder = "{id}"

// UnclassifiedKey is the key of the fallback template that holds every URL
// whose path could not be classified.
const UnclassifiedKey = "unclassified"

// Segment describes one path segment of a template signature.
type Segment struct {
	// Kind is literal or variable.
	Kind SegmentKind `json:"kind"`

	// Value is the literal text. It is empty for variable segments.
	Value string `json:"value,omitempty"`
}

// Literal returns a literal segment holding value.
func Literal(value string) Segment {
	return Segment{Kind: SegmentLiteral, Value: value}
}

// Variable returns a variable segment.
func Variable() Segment {
	return Segment{Kind: SegmentVariable}
}

// IsVariable reports whether the segment is variable.
func (s Segment) IsVariable() bool {
	return s.Kind == SegmentVariable
}

// String renders the segment as it appears in a signature.
func (s Segment) String() string {
	if s.IsVariable() {
		return VariablePlaceholder
	}
	return s.Value
}

// TemplateSignature is the ordered literal/variable pattern of a URL path.
// Two URLs share a template if and only if their signatures are equal,
// which requires the same number of segments.
type TemplateSignature struct {
	// Segments are the path segments in order. An empty slice is the root.
	Segments []Segment `json:"segments"`

	// Unclassified marks the fallback signature for malformed URLs.
	Unclassified bool `json:"unclassified,omitempty"`
}

// NewSignature builds a signature from segments.
func NewSignature(segments ...Segment) TemplateSignature {
	s := make([]Segment, len(segments))
	copy(s, segments)
	return TemplateSignature{Segments: s}
}

// UnclassifiedSignature returns the signature of the fallback template.
func UnclassifiedSignature() TemplateSignature {
	return TemplateSignature{Unclassified: true}
}

// Len returns the number of path segments.
func (ts TemplateSignature) Len() int {
	return len(ts.Segments)
}

// IsRoot reports whether the signature describes the root path.
func (ts TemplateSignature) IsRoot() bool {
	return !ts.Unclassified && len(ts.Segments) == 0
}

// Equal reports whether two signatures describe the same template.
func (ts TemplateSignature) Equal(other TemplateSignature) bool {
	if ts.Unclassified != other.Unclassified {
		return false
	}
	if len(ts.Segments) != len(other.Segments) {
		return false
	}
	for i := range ts.Segments {
		if ts.Segments[i] != other.Segments[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the signature.
func (ts TemplateSignature) Clone() TemplateSignature {
	return TemplateSignature{
		Segments:     append([]Segment(nil), ts.Segments...),
		Unclassified: ts.Unclassified,
	}
}

// WithVariable returns a copy of the signature with position i promoted to
// a variable segment.
func (ts TemplateSignature) WithVariable(i int) TemplateSignature {
	c := ts.Clone()
	if i >= 0 && i < len(c.Segments) {
		c.Segments[i] = Variable()
	}
	return c
}

// String renders the signature, e.g. "/blog/{id}/comments".
// The root renders as "/" and the fallback as "unclassified".
func (ts TemplateSignature) String() string {
	if ts.Unclassified {
		return UnclassifiedKey
	}
	if len(ts.Segments) == 0 {
		return "/"
	}

	var sb strings.Builder
	for _, seg := range ts.Segments {
		sb.WriteByte('/')
		sb.WriteString(seg.String())
	}
	return sb.String()
}

// Key returns a canonical map key for the signature.
// Unlike String, it cannot confuse a literal "{id}" segment with a variable.
func (ts TemplateSignature) Key() string {
	if ts.Unclassified {
		return "\x00" + UnclassifiedKey
	}

	var sb strings.Builder
	for _, seg := range ts.Segments {
		sb.WriteByte('/')
		if seg.IsVariable() {
			sb.WriteByte(0)
			continue
		}
		sb.WriteString(seg.Value)
	}
	return sb.String()
}
