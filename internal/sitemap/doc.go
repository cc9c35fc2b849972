// Package sitemap reads the page URLs an audit starts from.
//
// URLs come either from an XML sitemap (a <urlset> or a <sitemapindex>
// pointing at child sitemaps, optionally gzip-compressed) or from a plain
// text file with one URL per line.
package sitemap
