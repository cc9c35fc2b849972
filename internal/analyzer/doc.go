// Package analyzer detects heavy inline elements in HTML pages.
//
// A page is parsed once with golang.org/x/net/html and walked in document
// order. Each element is measured against a per-category threshold, and the
// resulting findings carry a description of the element's purpose and a
// primary/secondary classification. Secondary findings reference another
// registrable domain or match a known third-party signature.
package analyzer
