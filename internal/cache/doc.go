// Package cache stores crawled HTML payloads so repeated audits of the same
// site do not refetch pages.
//
// Entries are immutable for the lifetime of a cache directory: once a URL
// has been cached, later runs reuse the stored payload even if the live
// page has changed. Delete the directory (or point --cache-dir elsewhere)
// to start fresh.
package cache
