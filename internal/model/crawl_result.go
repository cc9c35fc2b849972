package model

import "time"

// Source tells where a crawl payload came from.
type Source string

const (
	// SourceNetwork means the payload was fetched over HTTP.
	SourceNetwork Source = "network"

	// SourceCache means the payload was read from the page cache.
	SourceCache Source = "cache"
)

// CrawlResult is the outcome of fetching one sampled URL.
// A CrawlResult is never modified after it is produced.
type CrawlResult struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// Body is the raw HTML payload. It is nil when the fetch failed.
	Body []byte `json:"-"`

	// StatusCode is the HTTP status code, or 0 if no response arrived.
	StatusCode int `json:"status_code"`

	// ContentType is the response Content-Type header.
	ContentType string `json:"content_type,omitempty"`

	// Error is the failure message. Empty on success.
	Error string `json:"error,omitempty"`

	// ErrorKind classifies the failure.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Source is cache or network.
	Source Source `json:"source"`

	// FetchedAt is when the payload was originally fetched. For cache hits
	// this is the time of the network fetch that populated the cache.
	FetchedAt time.Time `json:"fetched_at"`

	// Attempts is the number of network requests made for this URL.
	Attempts int `json:"attempts"`
}

// NewFailedResult builds a CrawlResult for a URL that produced no payload.
func NewFailedResult(url string, kind ErrorKind, statusCode int, err error, attempts int) *CrawlResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &CrawlResult{
		URL:        url,
		StatusCode: statusCode,
		Error:      msg,
		ErrorKind:  kind,
		Source:     SourceNetwork,
		FetchedAt:  time.Now(),
		Attempts:   attempts,
	}
}

// OK reports whether the result holds a payload.
func (r *CrawlResult) OK() bool {
	return r != nil && r.Error == "" && r.Body != nil
}

// Size returns the payload size in bytes.
func (r *CrawlResult) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Body)
}
