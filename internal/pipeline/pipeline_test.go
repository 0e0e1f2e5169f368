package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/model"
)

var errStep = errors.New("step failed")

// recordingStep appends its name to a shared slice and optionally fails.
type recordingStep struct {
	name string
	err  error
	log  *[]string
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Do(_ context.Context, _ *Job) error {
	*s.log = append(*s.log, s.name)
	return s.err
}

// crawlerFunc adapts a function to the Crawler interface.
type crawlerFunc func(ctx context.Context, seed string) (*model.MirrorReport, error)

func (f crawlerFunc) Crawl(ctx context.Context, seed string) (*model.MirrorReport, error) {
	return f(ctx, seed)
}

// failingStorage fails every call.
type failingStorage struct{}

func (failingStorage) MkdirAll(string) error { return errStep }
func (failingStorage) WriteFile(string, []byte) error { return errStep }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestPipelineExecute tests step sequencing and failure handling.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var calls []string
		p := New([]Step{
			&recordingStep{name: "first", log: &calls},
			&recordingStep{name: "second", log: &calls},
		}, WithLogger(discardLogger()))

		job := &Job{Seed: "http://example.com/", OutputDir: "out"}
		if err := p.Execute(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
			t.Errorf("unexpected call order: %v", calls)
		}
		if len(job.PerformedSteps) != 2 {
			t.Errorf("expected 2 performed steps, got %v", job.PerformedSteps)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var calls []string
		p := New([]Step{
			&recordingStep{name: "first", err: errStep, log: &calls},
			&recordingStep{name: "second", log: &calls},
		}, WithLogger(discardLogger()))

		job := &Job{Seed: "http://example.com/", OutputDir: "out"}
		if err := p.Execute(context.Background(), job); !errors.Is(err, errStep) {
			t.Fatalf("expected errStep, got %v", err)
		}
		if len(calls) != 1 {
			t.Errorf("expected second step to be skipped, got %v", calls)
		}
		if job.Report == nil || job.Report.Error != errStep.Error() {
			t.Fatalf("expected error report, got %+v", job.Report)
		}
		if job.Report.FinishedAt.IsZero() {
			t.Error("expected error report to be finished")
		}
	})

	t.Run("cancelled before start", func(t *testing.T) {
		t.Parallel()

		var calls []string
		p := New([]Step{&recordingStep{name: "first", log: &calls}}, WithLogger(discardLogger()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		job := &Job{Seed: "http://example.com/", OutputDir: "out"}
		if err := p.Execute(ctx, job); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(calls) != 0 {
			t.Errorf("expected no step to run, got %v", calls)
		}
		if job.Report == nil || !job.Report.Interrupted || job.Report.Visited != 0 {
			t.Errorf("expected empty interrupted report, got %+v", job.Report)
		}
	})

	t.Run("default logger", func(t *testing.T) {
		t.Parallel()

		if p := New(nil); p.logger == nil {
			t.Error("expected default logger")
		}
	})
}

// TestPrepareStep tests seed normalization and output root creation.
func TestPrepareStep(t *testing.T) {
	t.Parallel()

	t.Run("normalizes seed and creates root", func(t *testing.T) {
		t.Parallel()

		root := filepath.Join(t.TempDir(), "mirror", "site")
		job := &Job{Seed: " http://example.com/docs#top ", OutputDir: root}

		if err := NewPrepareStep(crawler.NewDiskStorage()).Do(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.Seed != "http://example.com/docs" {
			t.Errorf("expected normalized seed, got %q", job.Seed)
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			t.Errorf("expected output root to exist: %v", err)
		}
	})

	t.Run("rejects invalid seed", func(t *testing.T) {
		t.Parallel()

		job := &Job{Seed: "not a url", OutputDir: t.TempDir()}
		err := NewPrepareStep(crawler.NewDiskStorage()).Do(context.Background(), job)
		if !errors.Is(err, crawler.ErrNormalization) {
			t.Errorf("expected ErrNormalization, got %v", err)
		}
	})

	t.Run("reports storage failure", func(t *testing.T) {
		t.Parallel()

		job := &Job{Seed: "http://example.com/", OutputDir: "out"}
		err := NewPrepareStep(failingStorage{}).Do(context.Background(), job)
		if !errors.Is(err, errStep) {
			t.Errorf("expected storage error, got %v", err)
		}
	})
}

// TestMirrorStep tests crawler invocation.
func TestMirrorStep(t *testing.T) {
	t.Parallel()

	finished := func(seed string) *model.MirrorReport {
		r := model.NewMirrorReport(seed, "example.com", "out", 1)
		r.Finish()
		return r
	}

	tests := []struct {
		name       string
		factory    CrawlerFactory
		wantErr    bool
		wantReport bool
	}{
		{
			name: "stores report",
			factory: func(string, string) (Crawler, error) {
				return crawlerFunc(func(_ context.Context, seed string) (*model.MirrorReport, error) {
					return finished(seed), nil
				}), nil
			},
			wantReport: true,
		},
		{
			name: "interruption is not a failure",
			factory: func(string, string) (Crawler, error) {
				return crawlerFunc(func(_ context.Context, seed string) (*model.MirrorReport, error) {
					r := finished(seed)
					r.Interrupted = true
					return r, context.Canceled
				}), nil
			},
			wantReport: true,
		},
		{
			name: "crawler error",
			factory: func(string, string) (Crawler, error) {
				return crawlerFunc(func(context.Context, string) (*model.MirrorReport, error) {
					return nil, crawler.ErrNormalization
				}), nil
			},
			wantErr: true,
		},
		{
			name: "factory error",
			factory: func(string, string) (Crawler, error) {
				return nil, errStep
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := &Job{Seed: "http://example.com/", OutputDir: "out"}
			err := NewMirrorStep(tt.factory).Do(context.Background(), job)
			if (err != nil) != tt.wantErr {
				t.Errorf("Do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (job.Report != nil) != tt.wantReport {
				t.Errorf("report = %+v, wantReport %v", job.Report, tt.wantReport)
			}
		})
	}
}
