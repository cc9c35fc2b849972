package model

import "sort"

// Category is the kind of heavy element a finding describes.
type Category string

// Finding categories.
const (
	CategoryInlineScript       Category = "inline-script"
	CategoryJSONLD             Category = "json-ld"
	CategoryJSONNode           Category = "json-node"
	CategoryInlineStyle        Category = "inline-style"
	CategoryInlineSVG          Category = "inline-svg"
	CategoryDataURI            Category = "data-uri"
	CategoryNoscript           Category = "noscript"
	CategoryStyleAttribute     Category = "style-attribute"
	CategoryStyleAttributes    Category = "style-attributes"
	CategoryHiddenInput        Category = "hidden-input"
	CategoryHiddenContent      Category = "hidden-content"
	CategoryHTMLComments       Category = "html-comments"
	CategoryDOMSubtree         Category = "dom-subtree"
	CategoryExternalScript     Category = "external-script"
	CategoryExternalStylesheet Category = "external-stylesheet"
	CategoryIframe             Category = "iframe"
)

// AllCategories lists every category in report order.
var AllCategories = []Category{
	CategoryInlineScript,
	CategoryJSONLD,
	CategoryJSONNode,
	CategoryInlineStyle,
	CategoryInlineSVG,
	CategoryDataURI,
	CategoryNoscript,
	CategoryStyleAttribute,
	CategoryStyleAttributes,
	CategoryHiddenInput,
	CategoryHiddenContent,
	CategoryHTMLComments,
	CategoryDOMSubtree,
	CategoryExternalScript,
	CategoryExternalStylesheet,
	CategoryIframe,
}

// Classification separates authored markup from third-party content.
type Classification string

const (
	// Primary findings originate from the audited site itself.
	Primary Classification = "primary"

	// Secondary findings reference or embed a third-party origin.
	Secondary Classification = "secondary"
)

// Visibility tells whether the element affects what the visitor sees.
type Visibility string

const (
	// VisibilityUser is content the visitor can see or interact with.
	VisibilityUser Visibility = "user-visible"

	// VisibilityBackend is tracking, configuration or data payload.
	VisibilityBackend Visibility = "backend"
)

// Element describes the HTML element behind a finding.
type Element struct {
	// Tag is the element name, e.g. "script".
	Tag string `json:"tag"`

	// Attribute is the attribute name for attribute findings (style, src...).
	Attribute string `json:"attribute,omitempty"`

	// Identifier is a short human-readable form, e.g. `<script id="app">`.
	Identifier string `json:"identifier"`

	// Excerpt is a whitespace-collapsed prefix of the content, useful for
	// locating the element in the page source.
	Excerpt string `json:"excerpt,omitempty"`
}

// Finding is one heavy inline element on one page.
type Finding struct {
	// URL is the page the element was found on.
	URL string `json:"url"`

	// Element describes the element.
	Element Element `json:"element"`

	// Position is the element's index in document order. Aggregated
	// findings (page totals) use the position of their first contributor.
	Position int `json:"position"`

	// SizeBytes is the measured byte size.
	SizeBytes int `json:"size_bytes"`

	// Classification is primary or secondary.
	Classification Classification `json:"classification"`

	// Category is the kind of heavy element.
	Category Category `json:"category"`

	// Description is the detected purpose, e.g. "Google Tag Manager".
	Description string `json:"description"`

	// Visibility tells whether the element is user-visible.
	Visibility Visibility `json:"visibility"`

	// Subcomponent marks findings that measure a part of another finding,
	// such as a large node inside a JSON-LD payload or a script inside a
	// reported hidden block. Their bytes are not added to page totals.
	Subcomponent bool `json:"subcomponent,omitempty"`
}

// IsSecondary reports whether the finding is third-party content.
func (f Finding) IsSecondary() bool {
	return f.Classification == Secondary
}

// Fingerprint identifies "the same" element across pages.
func (f Finding) Fingerprint() string {
	return string(f.Category) + "::" + f.Element.Identifier
}

// SortFindings sorts findings by size descending, then URL, then position.
// The order is total, so the result does not depend on input order.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.SizeBytes != b.SizeBytes {
			return a.SizeBytes > b.SizeBytes
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Element.Identifier < b.Element.Identifier
	})
}

// PageAnalysis holds the findings for one page.
type PageAnalysis struct {
	// URL is the analyzed page.
	URL string `json:"url"`

	// TotalBytes is the size of the HTML payload.
	TotalBytes int `json:"total_bytes"`

	// Findings are sorted with SortFindings.
	Findings []Finding `json:"findings"`

	// ParseError is set when the payload could not be parsed. The page
	// then has no findings.
	ParseError string `json:"parse_error,omitempty"`
}

// FlaggedBytes is the sum of top-level finding sizes.
func (pa *PageAnalysis) FlaggedBytes() int {
	total := 0
	for _, f := range pa.Findings {
		if !f.Subcomponent {
			total += f.SizeBytes
		}
	}
	return total
}

// FlaggedPercent is FlaggedBytes as a percentage of TotalBytes.
func (pa *PageAnalysis) FlaggedPercent() float64 {
	if pa.TotalBytes == 0 {
		return 0
	}
	return float64(pa.FlaggedBytes()) / float64(pa.TotalBytes) * 100
}

// BytesByClassification sums top-level finding sizes per classification.
func (pa *PageAnalysis) BytesByClassification() (primary, secondary int) {
	for _, f := range pa.Findings {
		if f.Subcomponent {
			continue
		}
		if f.IsSecondary() {
			secondary += f.SizeBytes
		} else {
			primary += f.SizeBytes
		}
	}
	return primary, secondary
}
