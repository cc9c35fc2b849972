package analyzer

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// walk visits n and its descendants in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasAttr reports whether the named attribute is present.
func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

// text returns the concatenated text of n's direct text children.
// This is the raw content of <script> and <style> elements.
func text(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// isHidden reports whether an element is hidden with the hidden attribute
// or an inline display:none declaration.
func isHidden(n *html.Node) bool {
	if hasAttr(n, "hidden") {
		return true
	}
	style := strings.ToLower(strings.ReplaceAll(attr(n, "style"), " ", ""))
	return strings.Contains(style, "display:none")
}

// hasClassToken reports whether a whitespace-separated attribute value
// contains token.
func hasClassToken(value, token string) bool {
	for _, f := range strings.Fields(strings.ToLower(value)) {
		if f == token {
			return true
		}
	}
	return false
}

// countingWriter counts bytes written to it.
type countingWriter struct {
	n int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}

// WriteString lets html.Render skip its internal buffer.
func (w *countingWriter) WriteString(s string) (int, error) {
	w.n += len(s)
	return len(s), nil
}

// WriteByte completes the writer interface html.Render looks for.
func (w *countingWriter) WriteByte(byte) error {
	w.n++
	return nil
}

// outerSize returns the byte size of the serialized element, children
// included.
func outerSize(n *html.Node) int {
	var w countingWriter
	if err := html.Render(&w, n); err != nil {
		return 0
	}
	return w.n
}

// prefixWriter keeps the first limit bytes written to it.
type prefixWriter struct {
	buf   []byte
	limit int
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	if room := w.limit - len(w.buf); room > 0 {
		if len(p) > room {
			w.buf = append(w.buf, p[:room]...)
		} else {
			w.buf = append(w.buf, p...)
		}
	}
	return len(p), nil
}

// excerptLength is the length of the searchable excerpt of a finding.
const excerptLength = 150

// excerpt returns a whitespace-collapsed prefix of the serialized element,
// suitable for searching the page source.
func excerpt(n *html.Node) string {
	// Collapsing whitespace shortens the text, so keep some slack.
	w := &prefixWriter{limit: excerptLength * 4}
	_ = html.Render(w, n)
	return shorten(collapseSpace(string(w.buf)), excerptLength)
}

// collapseSpace replaces runs of whitespace with a single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// shorten truncates s to limit bytes and appends "..." when it was cut.
func shorten(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return truncate(s, limit) + "..."
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// identifier builds a short human-readable form of an element such as
// `<script id="app" type="module">`. The class is only shown when there is
// no source URL.
func identifier(n *html.Node, src string) string {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(n.Data)

	if id := attr(n, "id"); id != "" {
		sb.WriteString(` id="` + id + `"`)
	}
	if typ := attr(n, "type"); typ != "" && (n.Data == "script" || n.Data == "input") {
		sb.WriteString(` type="` + typ + `"`)
	}
	if src != "" {
		if len(src) > 80 {
			src = truncate(src, 77) + "..."
		}
		sb.WriteString(` src="` + src + `"`)
	} else if class := collapseSpace(attr(n, "class")); class != "" {
		if len(class) > 40 {
			class = truncate(class, 37) + "..."
		}
		sb.WriteString(` class="` + class + `"`)
	}

	sb.WriteByte('>')
	return sb.String()
}
