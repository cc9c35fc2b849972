package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when neither a sitemap URL nor --urls is given.
	ErrNoTarget = errors.New("no target specified: provide a sitemap URL or use --urls")

	// ErrConflictingSources is returned when sitemap URLs and --urls are
	// both given.
	ErrConflictingSources = errors.New("conflicting sources: sitemap URLs and --urls cannot be used together")

	// ErrInvalidSamples is returned when samples is outside 1-10.
	ErrInvalidSamples = errors.New("invalid samples: must be between 1 and 10")

	// ErrInvalidWorkers is returned when fewer than one worker is configured.
	ErrInvalidWorkers = errors.New("invalid workers: must be at least 1")

	// ErrInvalidDelay is returned when the delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidTopN is returned when the top findings count is negative.
	ErrInvalidTopN = errors.New("invalid top: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
