// Package main provides the entry point for the pageweight CLI.
//
// pageweight audits the HTML weight of a website. It reads the sitemap,
// groups the pages into URL templates, crawls a few samples per template
// and reports the inline payload (scripts, styles, SVG, data URIs, JSON
// state...) that makes the HTML heavy.
//
// Usage:
//
//	pageweight audit https://example.com/sitemap.xml
//	pageweight audit --urls urls.txt
//	pageweight history
//
// See --help for all available options.
package main

// main is the entry point for pageweight.
func main() {
	Execute()
}
