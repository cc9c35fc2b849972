package model

import (
	"errors"
	"fmt"
)

// ErrTemplateFrozen is returned when a URL is added to a template after
// sampling has begun.
var ErrTemplateFrozen = errors.New("template is frozen: sampling has begun")

// ErrorKind classifies why a URL produced no usable payload.
type ErrorKind string

const (
	// ErrorKindNone means the fetch succeeded.
	ErrorKindNone ErrorKind = ""

	// ErrorKindTransient covers timeouts, connection resets and 5xx/429
	// responses. Transient failures are retried once.
	ErrorKindTransient ErrorKind = "transient"

	// ErrorKindTerminal covers 4xx responses, DNS failures and invalid
	// URLs. Terminal failures are never retried.
	ErrorKindTerminal ErrorKind = "terminal"

	// ErrorKindParse means the payload was fetched but could not be parsed.
	ErrorKindParse ErrorKind = "parse"

	// ErrorKindCancelled means the crawl stopped before the URL was fetched.
	ErrorKindCancelled ErrorKind = "cancelled"
)

// ClassificationError is recorded when a URL cannot be turned into a
// template signature. The URL is routed to the unclassified template.
type ClassificationError struct {
	URL string
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %q: %v", e.URL, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// FetchError describes a failed page fetch.
type FetchError struct {
	// URL is the requested URL.
	URL string

	// Kind is ErrorKindTransient or ErrorKindTerminal.
	Kind ErrorKind

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s failure: HTTP %d", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s failure: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed on retry.
func (e *FetchError) Transient() bool {
	return e.Kind == ErrorKindTransient
}

// IsTransient reports whether err is, or wraps, a transient FetchError.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient()
	}
	return false
}

// ParseError is recorded when a fetched payload cannot be parsed as HTML.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CacheCorruptionError is returned when a cache entry exists but cannot be
// read back intact. Callers treat it as a cache miss.
type CacheCorruptionError struct {
	Path string
	Err  error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %v", e.Path, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error {
	return e.Err
}
