package cache

import (
	"context"
	"sync"

	"github.com/nao1215/pageweight/internal/model"
)

// Memory is an in-process cache with the same semantics as Disk.
// It is used by tests and by runs that must not touch the filesystem.
type Memory struct {
	counters

	mutex   sync.Mutex
	entries map[string]*model.CrawlResult
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*model.CrawlResult),
	}
}

// GetOrFetch implements Cache.
func (m *Memory) GetOrFetch(ctx context.Context, url string, fetch FetchFunc) (*model.CrawlResult, error) {
	if cached, err := m.Load(url); err == nil {
		m.hits.Add(1)
		return cached, nil
	}
	m.misses.Add(1)

	result, err := fetch(ctx, url)
	if err != nil {
		return result, err
	}
	if cacheable(result) {
		_ = m.Save(result)
	}
	return result, nil
}

// Stats implements Cache.
func (m *Memory) Stats() Stats {
	return m.snapshot()
}

// Load returns the entry for a URL or ErrMiss.
func (m *Memory) Load(url string) (*model.CrawlResult, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	r, ok := m.entries[Key(url)]
	if !ok {
		return nil, ErrMiss
	}
	return fromCache(r, url), nil
}

// Save stores a copy of a successful result.
func (m *Memory) Save(result *model.CrawlResult) error {
	if !cacheable(result) {
		return nil
	}

	c := *result
	c.Body = append([]byte(nil), result.Body...)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.entries[Key(result.URL)] = &c
	m.writes.Add(1)
	return nil
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.entries)
}

var (
	_ Cache = (*Disk)(nil)
	_ Cache = (*Memory)(nil)
	_ store = (*Disk)(nil)
	_ store = (*Memory)(nil)
)

// None is a pass-through cache that always fetches.
type None struct {
	counters
}

// GetOrFetch implements Cache.
func (n *None) GetOrFetch(ctx context.Context, url string, fetch FetchFunc) (*model.CrawlResult, error) {
	n.misses.Add(1)
	return fetch(ctx, url)
}

// Stats implements Cache.
func (n *None) Stats() Stats {
	return n.snapshot()
}

var _ Cache = (*None)(nil)
