// Package config provides the configuration of an audit run: crawl
// settings, report preferences, and the optional .pageweight file that
// carries analyzer thresholds and per-site overrides.
package config
