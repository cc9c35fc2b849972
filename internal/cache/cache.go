package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"sync/atomic"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/pageweight/internal/model"
)

// ErrMiss is returned by Load when no entry exists for a URL.
var ErrMiss = errors.New("cache miss")

// FetchFunc fetches a URL over the network. Failures are reported inside
// the returned result; the error is reserved for cancellation.
type FetchFunc func(ctx context.Context, url string) (*model.CrawlResult, error)

// Cache is the capability the crawl scheduler needs from a page cache.
type Cache interface {
	// GetOrFetch returns the cached payload for url, or calls fetch and
	// persists a successful result before returning it.
	GetOrFetch(ctx context.Context, url string, fetch FetchFunc) (*model.CrawlResult, error)

	// Stats returns the counters collected so far.
	Stats() Stats
}

// store is the load/save pair shared by the cache implementations.
type store interface {
	Load(url string) (*model.CrawlResult, error)
	Save(result *model.CrawlResult) error
}

// Stats contains cache counters.
type Stats struct {
	// Hits is the number of lookups served from the cache.
	Hits int64

	// Misses is the number of lookups that required a fetch.
	Misses int64

	// Writes is the number of payloads persisted.
	Writes int64

	// Corrupt is the number of unreadable entries treated as misses.
	Corrupt int64
}

// counters is embedded by implementations to track Stats.
type counters struct {
	hits    atomic.Int64
	misses  atomic.Int64
	writes  atomic.Int64
	corrupt atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Writes:  c.writes.Load(),
		Corrupt: c.corrupt.Load(),
	}
}

// Key returns the cache key of a URL: the hex SHA3-256 of its normalized form.
func Key(rawURL string) string {
	sum := sha3.Sum256([]byte(model.NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// checksum returns the hex SHA3-256 of a payload.
func checksum(body []byte) string {
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// cacheable reports whether a fetch result should be persisted.
// Only successful 2xx payloads are stored.
func cacheable(r *model.CrawlResult) bool {
	return r.OK() && r.StatusCode >= 200 && r.StatusCode < 300
}

// fromCache returns a copy of r marked as served from the cache.
func fromCache(r *model.CrawlResult, url string) *model.CrawlResult {
	c := *r
	c.URL = url
	c.Source = model.SourceCache
	c.Attempts = 0
	c.Body = append([]byte(nil), r.Body...)
	return &c
}
