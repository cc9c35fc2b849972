// Package report renders audit reports.
//
// Writers for each output format:
//   - SimpleWriter: aligned plain text for the terminal
//   - JSONWriter: the report as JSON for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with a mermaid pie chart
//   - ExcelWriter: an .xlsx workbook with one sheet per table
//
// Writers implement the Writer interface and can be combined with
// MultiWriter. Prepare drops secondary findings before writing when the
// run was configured without them.
package report
