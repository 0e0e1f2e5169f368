package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitemirror/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, mermaid charts and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter

	// maxResources caps the resource table. 0 means no cap.
	maxResources int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxResources caps the number of rows in the resource table.
func WithMaxResources(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		if n >= 0 {
			w.maxResources = n
		}
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.MirrorReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFailures(md, report)
	w.writeResources(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.MirrorReport) {
	md.H1("Mirror Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + report.Seed + "`"},
			{"Output", "`" + report.OutputDir + "`"},
			{"Max Depth", strconv.Itoa(report.MaxDepth)},
			{"Run ID", report.RunID},
			{"Started", report.StartedAt.Format(timeLayout)},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.MirrorReport) string {
	switch {
	case report.Error != "":
		return "❌ Error - " + report.Error
	case report.Interrupted:
		return "⚠️ Interrupted (partial mirror)"
	default:
		return "✅ Complete"
	}
}

// writeSummary writes the counter table, the kind chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.MirrorReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Visited", strconv.Itoa(report.Visited)},
			{"Saved", strconv.Itoa(report.Saved)},
			{"Failed", strconv.Itoa(report.Failed)},
			{"Depth skipped", strconv.Itoa(report.DepthSkipped)},
			{"Dropped", strconv.Itoa(report.Dropped)},
			{"**Bytes**", "**" + formatBytes(report.TotalBytes()) + "**"},
		},
	})
	md.PlainText("")

	if report.Saved > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of saved resource kinds.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.MirrorReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Saved Resources by Kind"),
		piechart.WithShowData(true),
	)

	kinds := report.KindCounts()
	for _, kind := range []string{model.KindPage, model.KindStylesheet, model.KindImage, model.KindOther} {
		if kinds[kind] > 0 {
			chart.LabelAndIntValue(kind, uint64(kinds[kind]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.MirrorReport) {
	switch {
	case report.Error != "":
		md.Cautionf("The run failed: %s", report.Error)
	case report.Interrupted:
		md.Warningf("The run was interrupted after %d resource(s). The mirror is incomplete.", report.Visited)
	case report.Failed > 0:
		md.Importantf("%d resource(s) could not be mirrored.", report.Failed)
	case report.Dropped > 0:
		md.Note("Some links were dropped by the work list cap.")
	default:
		md.Tip("Every discovered resource was mirrored.")
	}
	md.PlainText("")
}

// writeFailures writes the failed resources.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.MirrorReport) {
	failed := report.FailedResources()
	if len(failed) == 0 {
		return
	}

	md.H2("Failed Resources")
	md.PlainText("")

	rows := make([][]string, len(failed))
	for i, res := range failed {
		rows[i] = []string{
			strconv.Itoa(res.Depth),
			truncateString(res.URL, 80),
			truncateString(orDash(res.Error), 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Depth", "URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeResources writes the saved resources table.
func (w *MarkdownWriter) writeResources(md *markdown.Markdown, report *model.MirrorReport) {
	md.H2("Resources")
	md.PlainText("")

	rows := make([][]string, 0, report.Saved)
	for _, res := range report.Resources {
		if res.Status != model.StatusSaved {
			continue
		}
		if w.maxResources > 0 && len(rows) >= w.maxResources {
			break
		}
		rows = append(rows, []string{
			strconv.Itoa(res.Depth),
			truncateString(res.URL, 80),
			"`" + res.LocalPath + "`",
			orDash(res.ContentType),
			formatBytes(res.Size),
		})
	}

	if len(rows) == 0 {
		md.PlainText("No resources were saved.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Depth", "URL", "Local Path", "Type", "Size"},
		Rows:   rows,
	})
	md.PlainText("")

	if w.maxResources > 0 && report.Saved > w.maxResources {
		md.PlainTextf("*%d more resource(s) not shown.*", report.Saved-w.maxResources)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitemirror](https://github.com/nao1215/sitemirror)*")
}
