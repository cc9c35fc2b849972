// Package template groups URLs into structural page templates.
//
// A template is the literal/variable shape of a URL path such as
// "/products/{id}". Grouping a large sitemap by template bounds the number
// of pages that have to be crawled: a few samples per template describe
// the whole site.
package template
