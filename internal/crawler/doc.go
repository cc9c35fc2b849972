// Package crawler fetches sampled pages over HTTP.
//
// # Architecture
//
// The Fetcher performs a single HTTP request and classifies its outcome as
// success, transient failure or terminal failure. The Scheduler runs a
// fixed pool of workers over a shared queue of URLs. Each worker consults
// the page cache first and only touches the network on a miss.
//
// # Politeness
//
// Every worker owns a rate limiter, so two network requests issued by the
// same worker are always at least the configured delay apart. Cache hits
// do not wait. With W workers and delay D the target sees roughly W/D
// requests per second.
//
// # Retries
//
// Transient failures (timeouts, connection resets, 5xx and 429 responses)
// are retried once after a backoff. Terminal failures (other 4xx, DNS
// errors, invalid URLs, oversized bodies) are recorded and not retried.
//
// # Usage
//
//	fetcher := crawler.NewFetcher(http.DefaultClient, crawler.WithUserAgent(ua))
//	scheduler := crawler.NewScheduler(fetcher, crawler.WithWorkers(3), crawler.WithDelay(time.Second))
//	results, err := scheduler.Run(ctx, urls)
package crawler
