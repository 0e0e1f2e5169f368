package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitemirror/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display after a run.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because the summary is often redirected to a file next to
// the mirror.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose lists every resource, not only failures.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists every processed resource.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.MirrorReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFailures(&sb, report)
	if w.verbose {
		w.writeResources(&sb, report)
	}
	w.writeFooter(&sb, report)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.MirrorReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         SITEMIRROR REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:           %s\n", report.Seed)
	fmt.Fprintf(sb, "Output:         %s\n", report.OutputDir)
	fmt.Fprintf(sb, "Max Depth:      %d\n", report.MaxDepth)
	fmt.Fprintf(sb, "Run ID:         %s\n", report.RunID)
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Elapsed:        %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:         %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeSummary writes the counters.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.MirrorReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  VISITED:       %d\n", report.Visited)
	fmt.Fprintf(sb, "  SAVED:         %d (%s)\n", report.Saved, formatBytes(report.TotalBytes()))
	fmt.Fprintf(sb, "  FAILED:        %d\n", report.Failed)
	fmt.Fprintf(sb, "  DEPTH SKIPPED: %d\n", report.DepthSkipped)
	if report.Dropped > 0 || w.showEmpty {
		fmt.Fprintf(sb, "  DROPPED:       %d\n", report.Dropped)
	}
	sb.WriteString("\n")

	kinds := report.KindCounts()
	fmt.Fprintf(sb, "  pages: %d, stylesheets: %d, images: %d, other: %d\n",
		kinds[model.KindPage], kinds[model.KindStylesheet], kinds[model.KindImage], kinds[model.KindOther])
	sb.WriteString("\n")
}

// writeFailures lists the resources that could not be mirrored.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.MirrorReport) {
	failed := report.FailedResources()
	if len(failed) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILED RESOURCES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(failed) == 0 {
		sb.WriteString("  No failures\n\n")
		return
	}
	for _, res := range failed {
		fmt.Fprintf(sb, "  [!] %s\n", res.URL)
		if res.Error != "" {
			fmt.Fprintf(sb, "      Error: %s\n", res.Error)
		}
	}
	sb.WriteString("\n")
}

// writeResources lists every processed resource in processing order.
func (w *SimpleWriter) writeResources(sb *strings.Builder, report *model.MirrorReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RESOURCES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, res := range report.Resources {
		indicator := "+"
		if res.Status == model.StatusFailed {
			indicator = "!"
		}
		fmt.Fprintf(sb, "  [%s] [%d] %s\n", indicator, res.Depth, res.URL)
		if res.Status == model.StatusSaved {
			fmt.Fprintf(sb, "        -> %s (%s, %s)\n", res.LocalPath, orDash(res.ContentType), formatBytes(res.Size))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder, report *model.MirrorReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Processed %d resources\n", report.Visited)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
