package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/model"
)

// fakePipelineFactory returns pipelines whose mirror step calls crawl.
func fakePipelineFactory(crawl crawlerFunc) func() *Pipeline {
	return func() *Pipeline {
		return New([]Step{
			NewPrepareStep(failingStorageFor("")),
			NewMirrorStep(func(string, string) (Crawler, error) { return crawl, nil }),
		}, WithLogger(discardLogger()))
	}
}

// memoryStorage accepts every call without touching the disk.
type memoryStorage struct{}

func (memoryStorage) MkdirAll(string) error { return nil }
func (memoryStorage) WriteFile(string, []byte) error { return nil }

// failingStorageFor fails MkdirAll for dir and accepts everything else.
// An empty dir never fails.
func failingStorageFor(dir string) crawler.Storage {
	if dir == "" {
		return memoryStorage{}
	}
	return dirFailingStorage{dir: dir}
}

type dirFailingStorage struct{ dir string }

func (s dirFailingStorage) MkdirAll(dir string) error {
	if dir == s.dir {
		return errStep
	}
	return nil
}

func (dirFailingStorage) WriteFile(string, []byte) error { return nil }

// TestNewBatchMirror tests the BatchMirror constructor.
func TestNewBatchMirror(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		b := NewBatchMirror("out", nil)
		if b.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, b.concurrency)
		}
		if b.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()

		b := NewBatchMirror("out", nil, WithConcurrency(2), WithBatchLogger(discardLogger()))
		if b.concurrency != 2 {
			t.Errorf("expected concurrency 2, got %d", b.concurrency)
		}

		b = NewBatchMirror("out", nil, WithConcurrency(0))
		if b.concurrency != DefaultConcurrency {
			t.Errorf("expected non-positive concurrency to be ignored, got %d", b.concurrency)
		}
	})
}

// TestOutputDirs tests output root assignment.
func TestOutputDirs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		seeds []string
		want  []string
	}{
		{
			name:  "single seed uses base dir",
			seeds: []string{"http://example.com/"},
			want:  []string{"out"},
		},
		{
			name:  "one directory per host",
			seeds: []string{"http://a.example/", "https://b.example/docs"},
			want:  []string{filepath.Join("out", "a.example"), filepath.Join("out", "b.example")},
		},
		{
			name:  "repeated host gets a suffix",
			seeds: []string{"http://a.example/", "http://a.example/blog", "http://a.example/shop"},
			want: []string{
				filepath.Join("out", "a.example"),
				filepath.Join("out", "a.example-2"),
				filepath.Join("out", "a.example-3"),
			},
		},
		{
			name:  "port and invalid seed",
			seeds: []string{"http://127.0.0.1:8080/", "::bad::"},
			want:  []string{filepath.Join("out", "127.0.0.1_8080"), filepath.Join("out", "seed-2")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := OutputDirs("out", tt.seeds)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d dirs, got %v", len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("dir %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// TestBatchMirrorRun tests concurrent mirroring with fake crawlers.
func TestBatchMirrorRun(t *testing.T) {
	t.Parallel()

	seeds := []string{"http://a.example/", "http://b.example/", "http://c.example/", "http://d.example/"}

	t.Run("returns reports in input order", func(t *testing.T) {
		t.Parallel()

		crawl := crawlerFunc(func(_ context.Context, seed string) (*model.MirrorReport, error) {
			// Finish later seeds first.
			if strings.Contains(seed, "a.example") {
				time.Sleep(20 * time.Millisecond)
			}
			r := model.NewMirrorReport(seed, "", "", 1)
			r.Finish()
			return r, nil
		})

		b := NewBatchMirror("out", fakePipelineFactory(crawl), WithBatchLogger(discardLogger()))
		reports, err := b.Run(context.Background(), seeds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, r := range reports {
			if r == nil || r.Seed != seeds[i] {
				t.Errorf("report %d = %+v, want seed %s", i, r, seeds[i])
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		crawl := crawlerFunc(func(_ context.Context, seed string) (*model.MirrorReport, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return model.NewMirrorReport(seed, "", "", 1), nil
		})

		b := NewBatchMirror("out", fakePipelineFactory(crawl),
			WithConcurrency(2), WithBatchLogger(discardLogger()))
		if _, err := b.Run(context.Background(), seeds); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent jobs, got %d", peak.Load())
		}
	})

	t.Run("failed job does not stop the others", func(t *testing.T) {
		t.Parallel()

		var crawled atomic.Int32
		crawl := crawlerFunc(func(_ context.Context, seed string) (*model.MirrorReport, error) {
			crawled.Add(1)
			return model.NewMirrorReport(seed, "", "", 1), nil
		})
		factory := func() *Pipeline {
			return New([]Step{
				NewPrepareStep(failingStorageFor(filepath.Join("out", "b.example"))),
				NewMirrorStep(func(string, string) (Crawler, error) { return crawl, nil }),
			}, WithLogger(discardLogger()))
		}

		b := NewBatchMirror("out", factory, WithBatchLogger(discardLogger()))
		reports, err := b.Run(context.Background(), append([]string{"::bad::"}, seeds...))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if crawled.Load() != 3 {
			t.Errorf("expected 3 crawls, got %d", crawled.Load())
		}
		if reports[0].Error == "" || reports[2].Error == "" {
			t.Errorf("expected error reports for the bad seed and b.example: %+v, %+v", reports[0], reports[2])
		}
		if reports[1].Error != "" {
			t.Errorf("unexpected error for a.example: %s", reports[1].Error)
		}
	})

	t.Run("cancelled batch", func(t *testing.T) {
		t.Parallel()

		crawl := crawlerFunc(func(_ context.Context, seed string) (*model.MirrorReport, error) {
			return model.NewMirrorReport(seed, "", "", 1), nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		b := NewBatchMirror("out", fakePipelineFactory(crawl), WithBatchLogger(discardLogger()))
		reports, err := b.Run(ctx, seeds)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		for i, r := range reports {
			if r == nil || !r.Interrupted {
				t.Errorf("report %d should be interrupted: %+v", i, r)
			}
		}
	})
}

// TestBatchMirrorSites mirrors two real sites end to end.
func TestBatchMirrorSites(t *testing.T) {
	t.Parallel()

	newSite := func(body string) *httptest.Server {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(body))
		})
		mux.HandleFunc("/style.css", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/css")
			_, _ = w.Write([]byte("body { color: red; }"))
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)
		return srv
	}

	first := newSite(`<html><head><link rel="stylesheet" href="/style.css"></head><body>one</body></html>`)
	second := newSite(`<html><body>two</body></html>`)

	base := t.TempDir()
	storage := crawler.NewDiskStorage()
	factory := func() *Pipeline {
		return New([]Step{
			NewPrepareStep(storage),
			NewMirrorStep(func(_, outputDir string) (Crawler, error) {
				fetcher := crawler.NewFetcher(first.Client(), storage)
				mapper := crawler.NewPathMapper(outputDir, storage)
				return crawler.NewSpider(fetcher, mapper,
					crawler.WithDelay(0),
					crawler.WithLogger(discardLogger()),
				), nil
			}),
		}, WithLogger(discardLogger()))
	}

	b := NewBatchMirror(base, factory, WithBatchLogger(discardLogger()))
	reports, err := b.Run(context.Background(), []string{first.URL + "/", second.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reports[0].Saved != 2 || reports[1].Saved != 1 {
		t.Errorf("unexpected saved counts: %d, %d", reports[0].Saved, reports[1].Saved)
	}

	for i, srv := range []*httptest.Server{first, second} {
		u, err := url.Parse(srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		index := filepath.Join(base, strings.ReplaceAll(u.Host, ":", "_"), "index.html")
		if _, err := os.Stat(index); err != nil {
			t.Errorf("site %d: expected %s: %v", i, index, err)
		}
	}

	css := filepath.Join(reports[0].OutputDir, "style.css")
	data, err := os.ReadFile(css)
	if err != nil {
		t.Fatalf("expected stylesheet: %v", err)
	}
	if string(data) != "body { color: red; }" {
		t.Errorf("unexpected stylesheet content: %q", data)
	}
}
