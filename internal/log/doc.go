// Package log builds the slog loggers used by pageweight.
//
// Audits may send custom request headers (cookies, basic auth, API keys
// for staging sites) and sitemap URLs may carry credentials or signed
// query parameters. The RedactingHandler masks these before a record
// reaches the output:
//   - attributes whose key names a credential (authorization, cookie, token...)
//   - header maps, where only credential headers are masked
//   - URL userinfo and credential query parameters
//   - values that look like bearer tokens, JWTs or long API keys
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
