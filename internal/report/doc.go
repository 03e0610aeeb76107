// Package report renders crawl reports.
//
// Writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown with tables and a Mermaid pie chart
//
// Writers implement the Writer interface, so they can be used
// interchangeably and composed with MultiWriter.
package report
