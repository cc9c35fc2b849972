package crawler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/pageweight/internal/cache"
	"github.com/nao1215/pageweight/internal/model"
)

// Default scheduler settings.
const (
	// DefaultWorkers is the number of concurrent workers.
	DefaultWorkers = 3

	// DefaultDelay is the minimum gap between two network requests of one worker.
	DefaultDelay = time.Second

	// DefaultRetryBackoff is the wait before retrying a transient failure.
	DefaultRetryBackoff = 2 * time.Second

	// maxAttempts is the number of network attempts per URL.
	maxAttempts = 2
)

// Progress is reported after each URL completes.
type Progress struct {
	// Done is the number of URLs completed so far.
	Done int

	// Total is the number of URLs scheduled.
	Total int

	// Result is the result that just completed.
	Result *model.CrawlResult
}

// ProgressFunc receives progress updates. It is called from a single
// goroutine.
type ProgressFunc func(Progress)

// Scheduler fetches a set of URLs with a fixed pool of workers.
type Scheduler struct {
	// fetcher performs network requests.
	fetcher PageFetcher

	// cache is consulted before every network request.
	cache cache.Cache

	// workers is the size of the worker pool.
	workers int

	// delay is the minimum gap between network requests of one worker.
	delay time.Duration

	// retryBackoff is the wait before the retry of a transient failure.
	retryBackoff time.Duration

	// progress, if set, is called after each URL.
	progress ProgressFunc

	// logger is used for crawl logging.
	logger *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithWorkers sets the number of workers. Values below 1 are ignored.
func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithDelay sets the per-worker delay between network requests.
func WithDelay(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithRetryBackoff sets the wait before retrying a transient failure.
func WithRetryBackoff(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d >= 0 {
			s.retryBackoff = d
		}
	}
}

// WithCache sets the page cache.
func WithCache(c cache.Cache) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) SchedulerOption {
	return func(s *Scheduler) {
		s.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a Scheduler. Without WithCache every URL goes to
// the network.
func NewScheduler(fetcher PageFetcher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		fetcher:      fetcher,
		cache:        &cache.None{},
		workers:      DefaultWorkers,
		delay:        DefaultDelay,
		retryBackoff: DefaultRetryBackoff,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run fetches every URL and returns one result per distinct URL, keyed by
// URL. Results complete in any order.
//
// When ctx is cancelled, workers stop pulling new URLs and in-flight
// requests are abandoned. URLs that were never attempted are returned
// with ErrorKindCancelled, and Run returns ctx.Err() alongside the map.
func (s *Scheduler) Run(ctx context.Context, urls []string) (map[string]*model.CrawlResult, error) {
	pending := dedupe(urls)

	queue := make(chan string, len(pending))
	for _, u := range pending {
		queue <- u
	}
	close(queue)

	workers := min(s.workers, len(pending))
	s.logger.Info("starting crawl",
		"urls", len(pending),
		"workers", workers,
		"delay", s.delay,
	)
	startTime := time.Now()

	results := make(chan *model.CrawlResult, workers)
	collected := make(map[string]*model.CrawlResult, len(pending))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range results {
			collected[r.URL] = r
			if s.progress != nil {
				s.progress(Progress{Done: len(collected), Total: len(pending), Result: r})
			}
		}
	}()

	var g errgroup.Group
	for id := range workers {
		g.Go(func() error {
			s.work(ctx, id, queue, results)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-done

	for _, u := range pending {
		if _, ok := collected[u]; !ok {
			collected[u] = model.NewFailedResult(u, model.ErrorKindCancelled, 0, context.Canceled, 0)
		}
	}

	s.logger.Info("crawl completed",
		"urls", len(pending),
		"duration", time.Since(startTime),
		"cache", s.cache.Stats(),
	)

	return collected, ctx.Err()
}

// work is the loop of one worker. It owns its rate limiter, so the delay
// applies per worker and not globally.
func (s *Scheduler) work(ctx context.Context, id int, queue <-chan string, results chan<- *model.CrawlResult) {
	var limiter *rate.Limiter
	if s.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.delay), 1)
	}

	for {
		// Check for cancellation before pulling the next URL.
		if ctx.Err() != nil {
			return
		}

		u, ok := <-queue
		if !ok {
			return
		}

		result, err := s.cache.GetOrFetch(ctx, u, func(ctx context.Context, u string) (*model.CrawlResult, error) {
			return s.fetchWithRetry(ctx, limiter, u)
		})
		if result == nil {
			result = model.NewFailedResult(u, model.ErrorKindCancelled, 0, err, 0)
		}

		s.logger.Debug("crawled page",
			"worker", id,
			"url", u,
			"status", result.StatusCode,
			"source", result.Source,
			"error", result.Error,
		)
		results <- result
	}
}

// fetchWithRetry performs the network fetch, retrying a transient failure
// once. The limiter is consulted before every attempt.
func (s *Scheduler) fetchWithRetry(ctx context.Context, limiter *rate.Limiter, u string) (*model.CrawlResult, error) {
	var result *model.CrawlResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return model.NewFailedResult(u, model.ErrorKindCancelled, 0, err, attempt-1), err
			}
		}

		r, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			if r == nil {
				r = model.NewFailedResult(u, model.ErrorKindCancelled, 0, err, attempt)
			}
			r.Attempts = attempt
			return r, err
		}
		r.Attempts = attempt
		result = r

		if r.ErrorKind != model.ErrorKindTransient || attempt == maxAttempts {
			break
		}

		s.logger.Debug("retrying transient failure",
			"url", u,
			"status", r.StatusCode,
			"error", r.Error,
			"backoff", s.retryBackoff,
		)
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(s.retryBackoff):
		}
	}
	return result, nil
}

// dedupe removes duplicate and empty URLs, keeping the first occurrence.
func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
