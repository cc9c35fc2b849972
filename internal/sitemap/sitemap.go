package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nao1215/pageweight/internal/crawler"
)

// DefaultMaxChildren is the maximum number of child sitemaps followed from
// sitemap indexes.
const DefaultMaxChildren = 50

var (
	// ErrNotSitemap is returned when a document is neither a <urlset> nor
	// a <sitemapindex>.
	ErrNotSitemap = errors.New("document is not a sitemap")

	// ErrTooLarge is returned when a decompressed sitemap exceeds the size
	// limit.
	ErrTooLarge = errors.New("sitemap too large")
)

// Source produces the page URLs of an audit.
type Source interface {
	FetchAll(ctx context.Context, location string) ([]string, error)
}

// Document is a decoded <urlset> or <sitemapindex>.
type Document struct {
	// XMLName is the root element.
	XMLName xml.Name

	// URLs are the <url> entries of a urlset.
	URLs []Location `xml:"url"`

	// Sitemaps are the <sitemap> entries of an index.
	Sitemaps []Location `xml:"sitemap"`
}

// IsIndex reports whether the document is a sitemap index.
func (d *Document) IsIndex() bool {
	return d.XMLName.Local == "sitemapindex"
}

// PageURLs returns the page locations of a urlset.
func (d *Document) PageURLs() []string {
	return locs(d.URLs)
}

// ChildSitemaps returns the child sitemap locations of an index.
func (d *Document) ChildSitemaps() []string {
	return locs(d.Sitemaps)
}

// Location is a <loc> entry.
type Location struct {
	Loc string `xml:"loc"`
}

// Fetcher retrieves XML sitemaps over HTTP.
type Fetcher struct {
	// pages performs the HTTP requests.
	pages crawler.PageFetcher

	// maxChildren bounds the number of child sitemaps followed.
	maxChildren int

	// maxSize bounds the decompressed size of one sitemap.
	maxSize int64

	// logger reports skipped child sitemaps.
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxChildren sets the maximum number of child sitemaps followed.
func WithMaxChildren(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxChildren = n
		}
	}
}

// WithMaxSize sets the largest decompressed sitemap accepted.
func WithMaxSize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxSize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher that downloads sitemaps with pages.
func NewFetcher(pages crawler.PageFetcher, opts ...Option) *Fetcher {
	f := &Fetcher{
		pages:       pages,
		maxChildren: DefaultMaxChildren,
		maxSize:     crawler.DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll returns the deduplicated page URLs of a sitemap in discovery
// order. Child sitemaps of an index are followed up to the configured
// limit; a child that fails is logged and skipped. A failure of the root
// sitemap is returned as an error.
func (f *Fetcher) FetchAll(ctx context.Context, sitemapURL string) ([]string, error) {
	root, err := f.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	urls := newOrderedSet()
	urls.add(root.PageURLs()...)

	queue := root.ChildSitemaps()
	visited := map[string]struct{}{sitemapURL: {}}
	followed := 0
	for len(queue) > 0 {
		child := queue[0]
		queue = queue[1:]
		if _, ok := visited[child]; ok {
			continue
		}
		visited[child] = struct{}{}

		if followed >= f.maxChildren {
			f.logger.Warn("child sitemap limit reached",
				"limit", f.maxChildren,
				"skipped", len(queue)+1,
			)
			break
		}
		followed++

		doc, err := f.fetch(ctx, child)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("skipping child sitemap", "url", child, "error", err)
			continue
		}
		urls.add(doc.PageURLs()...)
		queue = append(queue, doc.ChildSitemaps()...)
	}

	f.logger.Info("sitemap loaded",
		"url", sitemapURL,
		"urls", len(urls.items),
		"child_sitemaps", followed,
	)
	return urls.items, nil
}

// fetch downloads and decodes one sitemap document.
func (f *Fetcher) fetch(ctx context.Context, sitemapURL string) (*Document, error) {
	result, err := f.pages.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return nil, fmt.Errorf("failed to fetch sitemap %s: %s", sitemapURL, result.Error)
	}

	doc, err := Parse(result.Body, f.maxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sitemap %s: %w", sitemapURL, err)
	}
	return doc, nil
}

// Parse decodes a sitemap document. Gzip-compressed input is detected by
// its magic bytes and decompressed first, reading at most maxSize bytes.
func Parse(data []byte, maxSize int64) (*Document, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		if data, err = io.ReadAll(io.LimitReader(zr, maxSize+1)); err != nil {
			return nil, fmt.Errorf("failed to decompress sitemap: %w", err)
		}
		if int64(len(data)) > maxSize {
			return nil, fmt.Errorf("%w: more than %d bytes decompressed", ErrTooLarge, maxSize)
		}
	}

	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSitemap, err)
	}
	switch doc.XMLName.Local {
	case "urlset", "sitemapindex":
		return &doc, nil
	}
	return nil, fmt.Errorf("%w: root element <%s>", ErrNotSitemap, doc.XMLName.Local)
}

// locs returns the trimmed, non-empty <loc> values.
func locs(entries []Location) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if loc := strings.TrimSpace(e.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

// orderedSet keeps the first occurrence of each string.
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{items: make([]string, 0), seen: make(map[string]struct{})}
}

func (s *orderedSet) add(values ...string) {
	for _, v := range values {
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.items = append(s.items, v)
	}
}
