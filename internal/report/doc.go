// Package report renders mirror run reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown output for sharing and archiving
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) so the journal and the CLI can share the
// same MirrorReport while each picks its own rendering.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
