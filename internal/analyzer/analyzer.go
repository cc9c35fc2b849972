package analyzer

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/pageweight/internal/model"
)

// Thresholds are the minimum sizes, in bytes, at which an element becomes a
// finding. An element is flagged when its size is at least the threshold.
type Thresholds struct {
	// InlineScript applies to the text of <script> elements without src.
	InlineScript int `yaml:"inline_script"`

	// JSONLD applies to the text of <script type="...json...">.
	JSONLD int `yaml:"json_ld"`

	// JSONNode applies to single values inside a flagged JSON payload.
	JSONNode int `yaml:"json_node"`

	// InlineStyle applies to the text of <style> elements.
	InlineStyle int `yaml:"inline_style"`

	// InlineSVG applies to the serialized size of top-level <svg> elements.
	InlineSVG int `yaml:"inline_svg"`

	// DataURI applies to each distinct data: URI found in an attribute.
	DataURI int `yaml:"data_uri"`

	// Noscript applies to the serialized size of <noscript> elements.
	Noscript int `yaml:"noscript"`

	// StyleAttribute applies to a single style="..." value.
	StyleAttribute int `yaml:"style_attribute"`

	// StyleAttributes applies to the sum of every style attribute on the page.
	StyleAttributes int `yaml:"style_attributes"`

	// HiddenInput applies to the sum of all <input type="hidden"> tags.
	HiddenInput int `yaml:"hidden_input"`

	// HiddenContent applies to elements hidden with the hidden attribute or
	// display:none.
	HiddenContent int `yaml:"hidden_content"`

	// HTMLComments applies to the sum of all comment text.
	HTMLComments int `yaml:"html_comments"`

	// DOMSubtreeDescendants is the descendant count that makes a subtree large.
	DOMSubtreeDescendants int `yaml:"dom_subtree_descendants"`

	// DOMSubtreePercent is the share of the page, in percent, a large
	// subtree must also reach.
	DOMSubtreePercent float64 `yaml:"dom_subtree_percent"`
}

// DefaultThresholds returns the default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		InlineScript:          500,
		JSONLD:                500,
		JSONNode:              5000,
		InlineStyle:           500,
		InlineSVG:             1000,
		DataURI:               500,
		Noscript:              2000,
		StyleAttribute:        300,
		StyleAttributes:       3000,
		HiddenInput:           1000,
		HiddenContent:         2000,
		HTMLComments:          1000,
		DOMSubtreeDescendants: 100,
		DOMSubtreePercent:     1.0,
	}
}

// Merge returns t with every zero field replaced by the value from def.
func (t Thresholds) Merge(def Thresholds) Thresholds {
	pick := func(v, d int) int {
		if v > 0 {
			return v
		}
		return d
	}
	out := Thresholds{
		InlineScript:          pick(t.InlineScript, def.InlineScript),
		JSONLD:                pick(t.JSONLD, def.JSONLD),
		JSONNode:              pick(t.JSONNode, def.JSONNode),
		InlineStyle:           pick(t.InlineStyle, def.InlineStyle),
		InlineSVG:             pick(t.InlineSVG, def.InlineSVG),
		DataURI:               pick(t.DataURI, def.DataURI),
		Noscript:              pick(t.Noscript, def.Noscript),
		StyleAttribute:        pick(t.StyleAttribute, def.StyleAttribute),
		StyleAttributes:       pick(t.StyleAttributes, def.StyleAttributes),
		HiddenInput:           pick(t.HiddenInput, def.HiddenInput),
		HiddenContent:         pick(t.HiddenContent, def.HiddenContent),
		HTMLComments:          pick(t.HTMLComments, def.HTMLComments),
		DOMSubtreeDescendants: pick(t.DOMSubtreeDescendants, def.DOMSubtreeDescendants),
		DOMSubtreePercent:     t.DOMSubtreePercent,
	}
	if out.DOMSubtreePercent <= 0 {
		out.DOMSubtreePercent = def.DOMSubtreePercent
	}
	return out
}

// dataURIPattern finds data: URIs inside attribute values.
var dataURIPattern = regexp.MustCompile(`(?i)data:[^"')\s]+`)

// dataURIKeyLength is the prefix length used to deduplicate data URIs.
const dataURIKeyLength = 200

// Analyzer finds heavy elements in HTML pages.
//
// Analyze is a pure function of its input and the thresholds: it performs
// no I/O, so an Analyzer is safe for concurrent use.
type Analyzer struct {
	thresholds Thresholds
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithThresholds sets the thresholds. Zero fields keep their defaults.
func WithThresholds(t Thresholds) Option {
	return func(a *Analyzer) {
		a.thresholds = t.Merge(DefaultThresholds())
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Thresholds returns the effective thresholds.
func (a *Analyzer) Thresholds() Thresholds {
	return a.thresholds
}

// Analyze parses a page and returns its findings sorted with
// model.SortFindings. A payload that is not HTML yields no findings and
// sets ParseError.
func (a *Analyzer) Analyze(pageURL string, body []byte) *model.PageAnalysis {
	result := &model.PageAnalysis{
		URL:        pageURL,
		TotalBytes: len(body),
		Findings:   make([]model.Finding, 0),
	}

	if err := sniff(body); err != nil {
		result.ParseError = (&model.ParseError{URL: pageURL, Err: err}).Error()
		return result
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		result.ParseError = (&model.ParseError{URL: pageURL, Err: err}).Error()
		return result
	}

	w := &pageWalk{
		t:        a.thresholds,
		pageURL:  pageURL,
		base:     parseBase(pageURL),
		total:    len(body),
		dataURIs: make(map[string]struct{}),
	}
	w.countDescendants(doc)
	w.visit(doc, false)
	w.finish()

	model.SortFindings(w.findings)
	result.Findings = w.findings
	return result
}

// sniff rejects payloads that are clearly not markup.
func sniff(body []byte) error {
	if len(body) == 0 {
		return nil
	}
	ct := http.DetectContentType(body)
	if strings.HasPrefix(ct, "text/") || strings.Contains(ct, "xml") {
		return nil
	}
	return fmt.Errorf("payload is not HTML (%s)", ct)
}

func parseBase(pageURL string) *url.URL {
	u, err := url.Parse(pageURL)
	if err != nil {
		return &url.URL{}
	}
	return u
}

// pageWalk holds the state of one document traversal.
type pageWalk struct {
	t        Thresholds
	pageURL  string
	base     *url.URL
	total    int
	findings []model.Finding

	// position is the document-order index of the current node.
	position int

	// descendants holds the element descendant count of every element.
	descendants map[*html.Node]int

	// dataURIs deduplicates data URIs by prefix.
	dataURIs map[string]struct{}

	// covered is set while inspecting an element whose bytes are already
	// part of a reported container. Findings added then are subcomponents
	// and page totals skip it.
	covered bool

	// hiddenInput is set while inspecting a hidden input counted in the
	// hidden-input total.
	hiddenInput bool

	// Page totals.
	styleAttrBytes  int
	styleAttrCount  int
	styleAttrFirst  int
	styleAttrSingle []int
	styleDataURIs   []int
	hiddenParts     []int
	hiddenBytes     int
	hiddenCount     int
	hiddenFirst     int
	commentBytes    int
	commentCount    int
	commentFirst    int
	firstComment    *html.Node
}

// countDescendants records the element descendant count of every element.
func (w *pageWalk) countDescendants(doc *html.Node) {
	w.descendants = make(map[*html.Node]int)
	var count func(n *html.Node) int
	count = func(n *html.Node) int {
		total := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			sub := count(c)
			if c.Type == html.ElementNode {
				total += 1 + sub
			} else {
				total += sub
			}
		}
		if n.Type == html.ElementNode {
			w.descendants[n] = total
		}
		return total
	}
	count(doc)
}

// visit walks the tree in document order. covered is true below an element
// already reported as a container, whose bytes include everything inside.
func (w *pageWalk) visit(n *html.Node, covered bool) {
	switch n.Type {
	case html.CommentNode:
		w.position++
		w.comment(n, covered)
	case html.ElementNode:
		w.position++
		covered = w.element(n, covered)
	}

	// Only the outermost <svg> is measured.
	if n.Type == html.ElementNode && n.Data == "svg" {
		w.visitSVGChildren(n, covered)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.visit(c, covered)
	}
}

// visitSVGChildren keeps counting positions and attributes inside an
// <svg> without reporting nested <svg> elements again.
func (w *pageWalk) visitSVGChildren(svg *html.Node, covered bool) {
	for c := svg.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(d *html.Node) {
			switch d.Type {
			case html.CommentNode:
				w.position++
				w.comment(d, covered)
			case html.ElementNode:
				w.position++
				w.covered = covered
				w.attributes(d)
			}
		})
	}
}

// element inspects one element and reports whether its children are
// covered by a reported container. The element itself is checked as a
// container first, so its own attributes and content count as parts of it.
func (w *pageWalk) element(n *html.Node, covered bool) bool {
	w.covered = covered
	w.hiddenInput = false
	if !covered && (w.hiddenContent(n) || w.domSubtree(n)) {
		w.covered = true
	}
	children := w.covered

	// Findings measuring the whole tag cover its attributes too.
	var whole bool
	switch n.Data {
	case "script":
		whole = w.script(n)
	case "style":
		w.style(n)
	case "svg":
		whole = w.svg(n)
		children = children || whole
	case "noscript":
		whole = w.noscript(n)
		children = children || whole
	case "link":
		whole = w.link(n)
	case "iframe":
		whole = w.iframe(n)
	case "input":
		if strings.EqualFold(attr(n, "type"), "hidden") && !w.covered {
			if w.hiddenCount == 0 {
				w.hiddenFirst = w.position
			}
			w.hiddenCount++
			w.hiddenBytes += outerSize(n)
			w.hiddenInput = true
		}
	}

	if whole {
		w.covered = true
	}
	w.attributes(n)
	w.hiddenInput = false
	return children
}

// attributes handles style attributes and data URIs. A data URI inside a
// style attribute is a part of that attribute once the attribute or the
// page total is reported.
func (w *pageWalk) attributes(n *html.Node) {
	for _, a := range n.Attr {
		// Attributes already measured by a container or by a hidden input
		// stay out of the style total.
		counted := !w.covered && !w.hiddenInput
		styleFlagged := false
		if a.Key == "style" && a.Val != "" {
			size := len(a.Val)
			if counted {
				if w.styleAttrCount == 0 {
					w.styleAttrFirst = w.position
				}
				w.styleAttrCount++
				w.styleAttrBytes += size
			}
			if size >= w.t.StyleAttribute {
				styleFlagged = true
				switch {
				case counted:
					w.styleAttrSingle = append(w.styleAttrSingle, len(w.findings))
				case !w.covered:
					w.hiddenParts = append(w.hiddenParts, len(w.findings))
				}
				w.add(model.Finding{
					Element: model.Element{
						Tag:        n.Data,
						Attribute:  "style",
						Identifier: identifier(n, "") + " [style]",
						Excerpt:    shorten(collapseSpace(a.Val), excerptLength),
					},
					SizeBytes:   size,
					Category:    model.CategoryStyleAttribute,
					Description: fmt.Sprintf("Oversized inline style attribute (%d bytes)", size),
					Visibility:  model.VisibilityUser,
				})
			}
		}

		for _, m := range dataURIPattern.FindAllString(a.Val, -1) {
			key := truncate(m, dataURIKeyLength)
			if _, seen := w.dataURIs[key]; seen {
				continue
			}
			w.dataURIs[key] = struct{}{}
			if len(m) < w.t.DataURI {
				continue
			}
			s := describeDataURI(m)
			switch {
			case w.covered || styleFlagged:
			case w.hiddenInput:
				w.hiddenParts = append(w.hiddenParts, len(w.findings))
			case a.Key == "style":
				w.styleDataURIs = append(w.styleDataURIs, len(w.findings))
			}
			w.add(model.Finding{
				Element: model.Element{
					Tag:        n.Data,
					Attribute:  a.Key,
					Identifier: identifier(n, "") + " [" + a.Key + "]",
					Excerpt:    shorten(m, excerptLength),
				},
				SizeBytes:    len(m),
				Category:     model.CategoryDataURI,
				Description:  s.description,
				Visibility:   s.visibility,
				Subcomponent: styleFlagged,
			})
		}
	}
}

// script measures an inline script and reports whether it recorded an
// external script, whose finding covers the whole tag.
func (w *pageWalk) script(n *html.Node) bool {
	if src := attr(n, "src"); src != "" {
		w.externalScript(n, src)
		return true
	}

	content := text(n)
	if strings.TrimSpace(content) == "" {
		return false
	}
	size := len(content)

	if strings.Contains(strings.ToLower(attr(n, "type")), "json") {
		if size < w.t.JSONLD {
			return false
		}
		s := describeJSONLD(content)
		id := identifier(n, "")
		w.add(model.Finding{
			Element:        model.Element{Tag: "script", Identifier: id, Excerpt: excerpt(n)},
			SizeBytes:      size,
			Category:       model.CategoryJSONLD,
			Description:    s.description,
			Visibility:     s.visibility,
			Classification: classifyBySignature(s),
		})
		for _, node := range jsonNodes(content, id, w.t.JSONNode) {
			w.add(model.Finding{
				Element:        model.Element{Tag: "script", Identifier: node.identifier, Excerpt: node.excerpt},
				SizeBytes:      node.size,
				Category:       model.CategoryJSONNode,
				Description:    fmt.Sprintf("Large JSON node (%q) in script payload", node.key),
				Visibility:     model.VisibilityBackend,
				Classification: classifyBySignature(s),
				Subcomponent:   true,
			})
		}
		return false
	}

	if size < w.t.InlineScript {
		return false
	}
	s := describeInline(content)
	w.add(model.Finding{
		Element:        model.Element{Tag: "script", Identifier: identifier(n, ""), Excerpt: excerpt(n)},
		SizeBytes:      size,
		Category:       model.CategoryInlineScript,
		Description:    s.description,
		Visibility:     s.visibility,
		Classification: classifyBySignature(s),
	})
	return false
}

func (w *pageWalk) externalScript(n *html.Node, src string) {
	s, known := match(resourceSignatures, src)
	desc := s.description
	if !known {
		desc = w.unknownResource(src, "Script")
		s.visibility = model.VisibilityBackend
	}

	var loading []string
	if hasAttr(n, "async") {
		loading = append(loading, "async")
	}
	if hasAttr(n, "defer") {
		loading = append(loading, "defer")
	}
	if len(loading) > 0 {
		desc += " (" + strings.Join(loading, ", ") + ")"
	}

	w.add(model.Finding{
		Element:        model.Element{Tag: "script", Attribute: "src", Identifier: identifier(n, src), Excerpt: excerpt(n)},
		SizeBytes:      outerSize(n),
		Category:       model.CategoryExternalScript,
		Description:    desc,
		Visibility:     s.visibility,
		Classification: w.classifyReference(src, known && s.thirdParty),
	})
}

func (w *pageWalk) style(n *html.Node) {
	content := text(n)
	if strings.TrimSpace(content) == "" || len(content) < w.t.InlineStyle {
		return
	}
	w.add(model.Finding{
		Element:     model.Element{Tag: "style", Identifier: identifier(n, ""), Excerpt: excerpt(n)},
		SizeBytes:   len(content),
		Category:    model.CategoryInlineStyle,
		Description: "Inline CSS stylesheet",
		Visibility:  model.VisibilityUser,
	})
}

func (w *pageWalk) svg(n *html.Node) bool {
	size := outerSize(n)
	if size < w.t.InlineSVG {
		return false
	}
	s := describeSVG(n)
	w.add(model.Finding{
		Element:     model.Element{Tag: "svg", Identifier: identifier(n, ""), Excerpt: excerpt(n)},
		SizeBytes:   size,
		Category:    model.CategoryInlineSVG,
		Description: s.description,
		Visibility:  s.visibility,
	})
	return true
}

func (w *pageWalk) noscript(n *html.Node) bool {
	size := outerSize(n)
	if size < w.t.Noscript {
		return false
	}

	// With scripting enabled the parser keeps noscript content as text.
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for _, a := range c.Attr {
			sb.WriteString(" " + a.Val)
		}
	})

	f := model.Finding{
		Element:     model.Element{Tag: "noscript", Identifier: identifier(n, ""), Excerpt: excerpt(n)},
		SizeBytes:   size,
		Category:    model.CategoryNoscript,
		Description: "Large <noscript> fallback content",
		Visibility:  model.VisibilityBackend,
	}
	if s, ok := match(resourceSignatures, sb.String()); ok {
		f.Description = s.description + " (noscript fallback)"
		f.Visibility = s.visibility
		f.Classification = classifyBySignature(s)
	}
	w.add(f)
	return true
}

func (w *pageWalk) link(n *html.Node) bool {
	if !hasClassToken(attr(n, "rel"), "stylesheet") {
		return false
	}
	href := attr(n, "href")
	if href == "" {
		return false
	}

	s, known := match(resourceSignatures, href)
	desc, visibility := s.description, s.visibility
	if !known {
		desc, visibility = "External stylesheet", model.VisibilityUser
	}

	w.add(model.Finding{
		Element:        model.Element{Tag: "link", Attribute: "href", Identifier: identifier(n, href), Excerpt: excerpt(n)},
		SizeBytes:      outerSize(n),
		Category:       model.CategoryExternalStylesheet,
		Description:    desc,
		Visibility:     visibility,
		Classification: w.classifyReference(href, known && s.thirdParty),
	})
	return true
}

func (w *pageWalk) iframe(n *html.Node) bool {
	src := attr(n, "src")
	s, known := match(resourceSignatures, src)
	desc, visibility := s.description, s.visibility
	if !known || src == "" {
		desc, visibility = "Embedded iframe", model.VisibilityUser
	}

	w.add(model.Finding{
		Element:        model.Element{Tag: "iframe", Attribute: "src", Identifier: identifier(n, src), Excerpt: excerpt(n)},
		SizeBytes:      outerSize(n),
		Category:       model.CategoryIframe,
		Description:    desc,
		Visibility:     visibility,
		Classification: w.classifyReference(src, known && s.thirdParty),
	})
	return true
}

// hiddenContent flags a large element hidden from visitors.
func (w *pageWalk) hiddenContent(n *html.Node) bool {
	if !isHidden(n) {
		return false
	}
	switch n.Data {
	case "script", "style", "svg", "noscript", "template", "input":
		// Measured by their own categories.
		return false
	}

	size := outerSize(n)
	if size < w.t.HiddenContent {
		return false
	}
	w.add(model.Finding{
		Element:     model.Element{Tag: n.Data, Identifier: identifier(n, ""), Excerpt: excerpt(n)},
		SizeBytes:   size,
		Category:    model.CategoryHiddenContent,
		Description: "Hidden content block (display:none or hidden)",
		Visibility:  model.VisibilityBackend,
	})
	return true
}

// domSubtree flags the outermost element inside <body> with a large number
// of descendants that is also a noticeable share of the page.
func (w *pageWalk) domSubtree(n *html.Node) bool {
	switch n.Data {
	case "html", "head", "body", "svg":
		return false
	}
	count := w.descendants[n]
	if count < w.t.DOMSubtreeDescendants || !insideBody(n) {
		return false
	}

	size := outerSize(n)
	if w.total > 0 && float64(size)*100/float64(w.total) < w.t.DOMSubtreePercent {
		return false
	}
	w.add(model.Finding{
		Element:     model.Element{Tag: n.Data, Identifier: identifier(n, ""), Excerpt: excerpt(n)},
		SizeBytes:   size,
		Category:    model.CategoryDOMSubtree,
		Description: fmt.Sprintf("Large DOM subtree with %d descendant elements", count),
		Visibility:  model.VisibilityUser,
	})
	return true
}

func insideBody(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "body" {
			return true
		}
	}
	return false
}

func (w *pageWalk) comment(n *html.Node, covered bool) {
	if covered {
		return
	}
	if w.commentCount == 0 {
		w.commentFirst = w.position
		w.firstComment = n
	}
	w.commentCount++
	w.commentBytes += len(n.Data)
}

// finish emits the page-total findings.
func (w *pageWalk) finish() {
	if w.styleAttrBytes >= w.t.StyleAttributes {
		// Single oversized attributes become parts of the page total.
		for _, i := range w.styleAttrSingle {
			w.findings[i].Subcomponent = true
		}
		for _, i := range w.styleDataURIs {
			w.findings[i].Subcomponent = true
		}
		w.findings = append(w.findings, model.Finding{
			URL:            w.pageURL,
			Element:        model.Element{Attribute: "style", Identifier: fmt.Sprintf("%d style attributes", w.styleAttrCount)},
			Position:       w.styleAttrFirst,
			SizeBytes:      w.styleAttrBytes,
			Classification: model.Primary,
			Category:       model.CategoryStyleAttributes,
			Description:    fmt.Sprintf("Excessive inline CSS properties across %d elements", w.styleAttrCount),
			Visibility:     model.VisibilityBackend,
		})
	}

	if w.hiddenCount > 0 && w.hiddenBytes >= w.t.HiddenInput {
		for _, i := range w.hiddenParts {
			w.findings[i].Subcomponent = true
		}
		w.findings = append(w.findings, model.Finding{
			URL:            w.pageURL,
			Element:        model.Element{Tag: "input", Identifier: fmt.Sprintf(`<input type="hidden"> x %d`, w.hiddenCount)},
			Position:       w.hiddenFirst,
			SizeBytes:      w.hiddenBytes,
			Classification: model.Primary,
			Category:       model.CategoryHiddenInput,
			Description:    fmt.Sprintf("%d hidden inputs totaling %d bytes", w.hiddenCount, w.hiddenBytes),
			Visibility:     model.VisibilityBackend,
		})
	}

	if w.commentCount > 0 && w.commentBytes >= w.t.HTMLComments {
		w.findings = append(w.findings, model.Finding{
			URL: w.pageURL,
			Element: model.Element{
				Identifier: fmt.Sprintf("<!-- %d comments -->", w.commentCount),
				Excerpt:    shorten(collapseSpace(w.firstComment.Data), excerptLength),
			},
			Position:       w.commentFirst,
			SizeBytes:      w.commentBytes,
			Classification: model.Primary,
			Category:       model.CategoryHTMLComments,
			Description:    fmt.Sprintf("%d HTML comments totaling %d bytes", w.commentCount, w.commentBytes),
			Visibility:     model.VisibilityBackend,
		})
	}
}

// add records a finding at the current position.
func (w *pageWalk) add(f model.Finding) {
	f.URL = w.pageURL
	f.Position = w.position
	if w.covered {
		f.Subcomponent = true
	}
	if f.Classification == "" {
		f.Classification = model.Primary
	}
	w.findings = append(w.findings, f)
}

// unknownResource describes a resource that matches no signature.
func (w *pageWalk) unknownResource(ref, kind string) string {
	if w.isThirdPartyURL(ref) {
		return "Unknown third-party resource"
	}
	return "First-party " + strings.ToLower(kind)
}

// classifyReference classifies an element that points at ref.
func (w *pageWalk) classifyReference(ref string, knownThirdParty bool) model.Classification {
	if knownThirdParty || w.isThirdPartyURL(ref) {
		return model.Secondary
	}
	return model.Primary
}

// classifyBySignature classifies inline content by its matched signature.
func classifyBySignature(s signature) model.Classification {
	if s.thirdParty {
		return model.Secondary
	}
	return model.Primary
}

// isThirdPartyURL reports whether ref, resolved against the page URL,
// points at a different site.
func (w *pageWalk) isThirdPartyURL(ref string) bool {
	if ref == "" {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	u = w.base.ResolveReference(u)
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return !SameSite(w.base.Hostname(), u.Hostname())
}

// SameSite reports whether two hosts belong to the same registrable
// domain, e.g. "www.example.com" and "cdn.example.com".
func SameSite(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	if a == "" || b == "" || a == b {
		return a == b
	}
	ra, errA := publicsuffix.EffectiveTLDPlusOne(a)
	rb, errB := publicsuffix.EffectiveTLDPlusOne(b)
	if errA != nil || errB != nil {
		return false
	}
	return ra == rb
}
