package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitemirror/internal/model"
)

// createTestReport creates a finished report with sample data for testing.
func createTestReport() *model.MirrorReport {
	report := model.NewMirrorReport("http://example.com/", "example.com", "scraped_site", 2)

	report.AddResource(model.Resource{
		URL: "http://example.com/", LocalPath: "scraped_site/index.html",
		ContentType: "text/html; charset=utf-8", Size: 2048, Status: model.StatusSaved,
	})
	report.AddResource(model.Resource{
		URL: "http://example.com/css/site.css", LocalPath: "scraped_site/css/site.css", Depth: 1,
		ContentType: "text/css", Size: 512, Status: model.StatusSaved,
	})
	report.AddResource(model.Resource{
		URL: "http://example.com/missing", LocalPath: "scraped_site/missing/index.html", Depth: 1,
		Status: model.StatusFailed, Error: "fetch failed: unexpected status 404",
	})
	report.DepthSkipped = 3
	report.FinishedAt = report.StartedAt.Add(1500 * time.Millisecond)

	return report
}

// failingWriter is a Writer that always fails.
type failingWriter struct{}

var errWriteFailed = errors.New("write failed")

func (failingWriter) Write(*model.MirrorReport) (int, error) {
	return 0, errWriteFailed
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}

		output := buf.String()
		for _, want := range []string{
			"SITEMIRROR REPORT",
			"Seed:           http://example.com/",
			"Status:         Complete",
			"Elapsed:        1.5s",
			"VISITED:       3",
			"SAVED:         2 (2.5 KiB)",
			"FAILED:        1",
			"DEPTH SKIPPED: 3",
			"pages: 1, stylesheets: 1, images: 0, other: 0",
			"Processed 3 resources",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("lists failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "FAILED RESOURCES") {
			t.Error("expected failed resources section")
		}
		if !strings.Contains(output, "[!] http://example.com/missing") {
			t.Error("expected failed URL")
		}
		if !strings.Contains(output, "unexpected status 404") {
			t.Error("expected failure reason")
		}
	})

	t.Run("hides empty sections by default", func(t *testing.T) {
		t.Parallel()

		report := model.NewMirrorReport("http://example.com/", "example.com", "out", 1)
		report.Finish()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "FAILED RESOURCES") {
			t.Error("did not expect failed resources section")
		}
		if strings.Contains(buf.String(), "DROPPED") {
			t.Error("did not expect dropped counter")
		}
	})

	t.Run("shows empty sections when asked", func(t *testing.T) {
		t.Parallel()

		report := model.NewMirrorReport("http://example.com/", "example.com", "out", 1)
		report.Finish()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No failures") {
			t.Error("expected empty failure section")
		}
		if !strings.Contains(buf.String(), "DROPPED:       0") {
			t.Error("expected dropped counter")
		}
	})

	t.Run("verbose lists every resource", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "RESOURCES\n") {
			t.Error("expected resources section")
		}
		if !strings.Contains(output, "[+] [1] http://example.com/css/site.css") {
			t.Error("expected saved resource line")
		}
		if !strings.Contains(output, "-> scraped_site/css/site.css (text/css, 512 B)") {
			t.Error("expected local path line")
		}
	})

	t.Run("reports interruption and errors", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			mutate func(*model.MirrorReport)
			want   string
		}{
			{"interrupted", func(r *model.MirrorReport) { r.Interrupted = true }, "INTERRUPTED (partial mirror)"},
			{"error", func(r *model.MirrorReport) { r.Error = "output dir not writable" }, "ERROR - output dir not writable"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				report := createTestReport()
				tt.mutate(report)

				var buf bytes.Buffer
				if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.Contains(buf.String(), tt.want) {
					t.Errorf("expected %q in output", tt.want)
				}
			})
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid compact JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.MirrorReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Seed != "http://example.com/" || decoded.Visited != 3 || len(decoded.Resources) != 3 {
			t.Errorf("unexpected decoded report: %+v", decoded)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected compact output with a single trailing newline")
		}
	})

	t.Run("pretty prints", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"seed\": \"http://example.com/\"") {
			t.Error("expected two-space indentation")
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent("", "\t")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n\t\"run_id\"") {
			t.Error("expected tab indentation")
		}
	})
}

// TestFullJSONWriter tests the wrapped JSON writer.
func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded JSONReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Version != "v1.2.3" {
		t.Errorf("expected version v1.2.3, got %s", decoded.Version)
	}
	if decoded.Report == nil || decoded.Report.Saved != 2 {
		t.Errorf("unexpected wrapped report: %+v", decoded.Report)
	}
	if len(decoded.FailedURLs) != 1 || decoded.FailedURLs[0] != "http://example.com/missing" {
		t.Errorf("unexpected failed URLs: %v", decoded.FailedURLs)
	}
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

		n, err := mw.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("expected total %d, got %d", text.Len()+js.Len(), n)
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))

		if _, err := mw.Write(createTestReport()); !errors.Is(err, errWriteFailed) {
			t.Errorf("expected errWriteFailed, got %v", err)
		}
		if after.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Mirror Report",
			"`http://example.com/`",
			"## Summary",
			"## Failed Resources",
			"## Resources",
			"`scraped_site/css/site.css`",
			"unexpected status 404",
			"pie",
			"[!IMPORTANT]",
			"✅ Complete",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("alerts on interruption", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Interrupted = true

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Error("expected warning alert")
		}
		if !strings.Contains(buf.String(), "Interrupted (partial mirror)") {
			t.Error("expected interrupted status")
		}
	})

	t.Run("empty run", func(t *testing.T) {
		t.Parallel()

		report := model.NewMirrorReport("http://example.com/", "example.com", "out", 1)
		report.Finish()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "No resources were saved.") {
			t.Error("expected empty resources note")
		}
		if strings.Contains(output, "## Failed Resources") {
			t.Error("did not expect failed resources section")
		}
		if strings.Contains(output, "pie") {
			t.Error("did not expect pie chart without saved resources")
		}
		if !strings.Contains(output, "[!TIP]") {
			t.Error("expected tip alert")
		}
	})

	t.Run("caps resource table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf, WithMaxResources(1)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Contains(output, "`scraped_site/css/site.css`") {
			t.Error("expected second saved resource to be cut")
		}
		if !strings.Contains(output, "1 more resource(s) not shown.") {
			t.Error("expected truncation note")
		}
	})
}

// TestFormatBytes tests human-readable sizes.
func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := formatBytes(tt.input); got != tt.want {
				t.Errorf("formatBytes(%d) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestTruncateString tests string truncation.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"tiny limit", "hello", 2, "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
