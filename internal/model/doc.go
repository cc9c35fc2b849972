// Package model defines the core data structures shared by the pageweight
// packages.
//
// The main types are:
//   - TemplateSignature and Template: the structural grouping of sitemap URLs
//   - CrawlResult: the outcome of fetching one sampled URL
//   - Finding and PageAnalysis: heavy inline elements detected on one page
//   - TemplateReport, SiteSummary and Report: the aggregated audit result
//
// Models live in their own package so that the grouping, crawling,
// analysis, aggregation and reporting packages can share them without
// import cycles. All report types serialize to JSON for report output and
// run history storage.
package model
