// Package pipeline runs the stages of an audit in sequence.
//
// Each stage is a Step that receives the shared model.Audit and adds its
// output: the source step loads URLs, the group step builds templates and
// samples, the crawl step fetches the samples, the analyze step finds heavy
// elements and the aggregate step builds the report.
//
// Steps wrapped with Always still run after the audit was cancelled, so an
// interrupted audit produces a partial report of the pages already fetched.
// BatchProcessor runs several audits concurrently using errgroup.
package pipeline
