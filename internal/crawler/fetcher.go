package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/pageweight/internal/model"
)

// Default fetcher settings.
const (
	// DefaultUserAgent identifies the auditor to the target site.
	DefaultUserAgent = "pageweight/1.0 (+https://github.com/nao1215/pageweight)"

	// DefaultMaxBodySize is the largest HTML payload that is analyzed.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultTimeout is the per-request deadline.
	DefaultTimeout = 30 * time.Second
)

// ErrBodyTooLarge is wrapped by fetch errors for oversized payloads.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// PageFetcher fetches a single URL. Failures are reported inside the
// result; the error is non-nil only when ctx was cancelled.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*model.CrawlResult, error)
}

// Fetcher performs HTTP GET requests for HTML pages.
type Fetcher struct {
	// client is the HTTP client.
	client *http.Client

	// userAgent is the User-Agent header to use.
	userAgent string

	// headers are extra request headers (cookies, authorization...).
	headers map[string]string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// timeout is the deadline of one request, body included.
	timeout time.Duration
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewFetcher creates a Fetcher. A nil client uses http.DefaultClient.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	f := &Fetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch performs one request. It never retries.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*model.CrawlResult, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("unsupported URL %q", pageURL)
		}
		return f.failure(pageURL, model.ErrorKindTerminal, 0, err), nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return f.failure(pageURL, model.ErrorKindTerminal, 0, err), nil
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return f.failure(pageURL, model.ErrorKindCancelled, 0, ctx.Err()), ctx.Err()
		}
		return f.failure(pageURL, classifyNetworkError(err), 0, err), nil
	}
	defer resp.Body.Close()

	if kind, failed := classifyStatus(resp.StatusCode); failed {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return f.failure(pageURL, kind, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)), nil
	}

	// Read one byte past the limit to detect oversized bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		if ctx.Err() != nil {
			return f.failure(pageURL, model.ErrorKindCancelled, resp.StatusCode, ctx.Err()), ctx.Err()
		}
		return f.failure(pageURL, classifyNetworkError(err), resp.StatusCode, err), nil
	}
	if int64(len(body)) > f.maxBodySize {
		return f.failure(pageURL, model.ErrorKindTerminal, resp.StatusCode,
			fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBodySize)), nil
	}

	return &model.CrawlResult{
		URL:         pageURL,
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Source:      model.SourceNetwork,
		FetchedAt:   time.Now(),
		Attempts:    1,
	}, nil
}

// failure builds a failed result wrapping a *model.FetchError.
func (f *Fetcher) failure(pageURL string, kind model.ErrorKind, status int, err error) *model.CrawlResult {
	fetchErr := &model.FetchError{URL: pageURL, Kind: kind, StatusCode: status, Err: err}
	return model.NewFailedResult(pageURL, kind, status, fetchErr, 1)
}

// classifyStatus maps an HTTP status to a failure kind.
// It reports false for 2xx responses.
func classifyStatus(status int) (model.ErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return model.ErrorKindNone, false
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return model.ErrorKindTransient, true
	default:
		return model.ErrorKindTerminal, true
	}
}

// classifyNetworkError decides whether a transport error is worth a retry.
func classifyNetworkError(err error) model.ErrorKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			return model.ErrorKindTransient
		}
		return model.ErrorKindTerminal
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ErrorKindTransient
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return model.ErrorKindTransient
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && strings.Contains(urlErr.Err.Error(), "stopped after") {
		// Redirect loop.
		return model.ErrorKindTerminal
	}

	return model.ErrorKindTransient
}
