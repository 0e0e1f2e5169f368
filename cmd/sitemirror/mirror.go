package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/database"
	applog "github.com/nao1215/sitemirror/internal/log"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/pipeline"
	"github.com/nao1215/sitemirror/internal/report"
	"github.com/nao1215/sitemirror/internal/transport"
	"github.com/spf13/cobra"
)

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror [url...]",
		Short: "Mirror one or more websites",
		Long: `Mirror downloads a website into a local directory.

Every resource on the seed's host that can be reached from the seed within
the depth limit is saved unmodified. Links to other hosts are ignored.
Without arguments the seed URL and the output directory are read from
standard input.

Examples:
  # Mirror a site into ./scraped_site
  sitemirror mirror https://example.com/

  # Follow at most 3 links from the seed, without delay
  sitemirror mirror -d 3 --delay 0 -o ./example https://example.com/

  # Mirror several sites, one sub-directory per host
  sitemirror mirror -o ./mirrors https://a.example/ https://b.example/

  # Go through a SOCKS5 proxy and save a Markdown report
  sitemirror mirror -x 127.0.0.1:9050 -m -r report.md https://example.com/

Configuration file (.sitemirror) example:
  defaults:
    delay: 2s
  sites:
    example.com:
      depth: 5
      headers:
        Accept-Language: "en"`,
		Args: cobra.ArbitraryArgs,
		RunE: runMirrorCmd,
	}

	// Crawl behavior flags
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory the site is mirrored into")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum number of links followed from the seed")
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Pause after each saved resource")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each download")
	cmd.Flags().Duration("head-timeout", config.DefaultHeadTimeout,
		"Timeout for each content type probe")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Stop after this many resources per site (0 means no limit)")
	cmd.Flags().Bool("bfs", false,
		"Finish each depth before the next one instead of following links first")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Largest accepted response body in bytes")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites mirrored concurrently")

	// Transport flags
	cmd.Flags().StringP("proxy", "x", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().StringP("user-agent", "A", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitemirror in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")

	return cmd
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if len(cfg.Seeds) == 0 {
		askDir := !cmd.Flags().Changed("output-dir")
		if err := promptSeed(cmd.InOrStdin(), cmd.OutOrStdout(), cfg, askDir); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runMirror(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	return getGlobalBool(cmd, "verbose")
}

// getGlobalBool retrieves a boolean persistent flag from the command or
// its root. A missing flag reads as false.
func getGlobalBool(cmd *cobra.Command, name string) bool {
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		value, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return value
}

// newLogger creates the secure logger writing to the command's stderr,
// in JSON when --log-json is set.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	if getGlobalBool(cmd, "log-json") {
		return applog.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return applog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.HeadTimeout, err = flags.GetDuration("head-timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.BreadthFirst, err = flags.GetBool("bfs"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory
	cfg.Verbose = getVerboseFlag(cmd)

	// If the user explicitly named a config file it must exist.
	// Otherwise a missing file means an empty configuration.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	for _, arg := range args {
		if seed := withDefaultScheme(arg); seed != "" {
			cfg.Seeds = append(cfg.Seeds, seed)
		}
	}

	return cfg, nil
}

// withDefaultScheme trims raw and prefixes "http://" when it has no scheme.
func withDefaultScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

// promptSeed reads the seed URL and, when askDir is set, the output
// directory from in.
func promptSeed(in io.Reader, out io.Writer, cfg *config.Config, askDir bool) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprint(out, "Enter the URL to mirror: ")
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read URL: %w", err)
		}
		return config.ErrNoSeed
	}
	seed := withDefaultScheme(scanner.Text())
	if seed == "" {
		return config.ErrNoSeed
	}
	cfg.Seeds = []string{seed}

	if !askDir {
		return nil
	}
	fmt.Fprintf(out, "Enter output directory (default: %s): ", config.DefaultOutputDir)
	if scanner.Scan() {
		if dir := strings.TrimSpace(scanner.Text()); dir != "" {
			cfg.OutputDir = dir
		}
	}
	return scanner.Err()
}

// runMirror mirrors every seed of cfg and writes the reports to out.
//
// An interrupted run is not an error: the partial reports are written and
// a note is added.
func runMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	if cfg.ProxyAddress != "" {
		if err := transport.CheckProxy(ctx, cfg.ProxyAddress); err != nil {
			return fmt.Errorf("proxy check failed (make sure a SOCKS5 proxy is running at %s): %w",
				cfg.ProxyAddress, err)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	var recorder crawler.Recorder
	if cfg.SaveHistory {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			// The journal is an audit trail; a run without it is still useful.
			logger.Warn("history disabled", "dir", cfg.DBDir, "error", err)
		} else {
			defer db.Close()
			recorder = db
			logger.Debug("history database opened", "path", db.Path())
		}
	}

	storage := crawler.NewDiskStorage()
	newCrawler := crawlerFactory(cfg, storage, recorder, logger)

	batch := pipeline.NewBatchMirror(cfg.OutputDir,
		func() *pipeline.Pipeline {
			return pipeline.New([]pipeline.Step{
				pipeline.NewPrepareStep(storage),
				pipeline.NewMirrorStep(newCrawler),
			}, pipeline.WithLogger(logger))
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	reports, runErr := batch.Run(ctx, cfg.Seeds)
	interrupted := errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		return runErr
	}

	if err := outputReports(cfg, reports, out); err != nil {
		return err
	}

	var processed, failedJobs int
	for _, r := range reports {
		processed += r.Visited
		if r.Error != "" {
			failedJobs++
		}
	}
	fmt.Fprintf(out, "Processed %d resources\n", processed)

	if interrupted {
		fmt.Fprintln(out, "Mirror interrupted; the report covers the resources processed before the interruption.")
		return nil
	}
	if failedJobs > 0 {
		return fmt.Errorf("%d of %d mirror(s) failed", failedJobs, len(reports))
	}
	return nil
}

// crawlerFactory returns a pipeline.CrawlerFactory building a Spider with
// the settings of the seed's host.
func crawlerFactory(cfg *config.Config, storage crawler.Storage, recorder crawler.Recorder, logger *slog.Logger) pipeline.CrawlerFactory {
	return func(seed, outputDir string) (pipeline.Crawler, error) {
		host := seedHost(seed)
		site := cfg.SiteSettings(host)

		client, err := transport.NewHTTPClient(transport.Options{
			Timeout:      cfg.Timeout,
			ProxyAddress: cfg.ProxyAddress,
			UserAgent:    site.UserAgent,
			Headers:      site.Headers,
		})
		if err != nil {
			return nil, err
		}
		if len(site.Headers) > 0 {
			logger.Debug("custom headers", "host", host, "headers", applog.Headers(site.Headers))
		}

		fetcher := crawler.NewFetcher(client, storage,
			crawler.WithUserAgent(site.UserAgent),
			crawler.WithGetTimeout(cfg.Timeout),
			crawler.WithHeadTimeout(cfg.HeadTimeout),
			crawler.WithMaxBodySize(cfg.MaxBodySize),
		)
		mapper := crawler.NewPathMapper(outputDir, storage)

		traversal := crawler.DepthFirst
		if cfg.BreadthFirst {
			traversal = crawler.BreadthFirst
		}
		opts := []crawler.SpiderOption{
			crawler.WithMaxDepth(site.Depth),
			crawler.WithMaxPages(cfg.MaxPages),
			crawler.WithDelay(site.Delay),
			crawler.WithTraversal(traversal),
			crawler.WithLogger(logger.With("host", host)),
		}
		if recorder != nil {
			opts = append(opts, crawler.WithRecorder(recorder))
		}
		return crawler.NewSpider(fetcher, mapper, opts...), nil
	}
}

// seedHost returns the host of a normalized seed, or "" if it has none.
func seedHost(seed string) string {
	u, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	return u.Host
}

// outputReports writes one report per seed in the requested format. With
// a report file, the file gets that format and out gets the text summary.
func outputReports(cfg *config.Config, reports []*model.MirrorReport, out io.Writer) error {
	writer := newReportWriter(cfg.JSONReport, cfg.MarkdownReport, out)
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()

		writer = report.NewMultiWriter(
			report.NewSimpleWriter(out),
			newReportWriter(cfg.JSONReport, cfg.MarkdownReport, f),
		)
	}

	for _, r := range reports {
		if _, err := writer.Write(r); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if cfg.ReportFile != "" {
		fmt.Fprintf(out, "Report written to %s\n", cfg.ReportFile)
	}
	return nil
}

// newReportWriter returns the report.Writer for the selected format.
// Several JSON reports are written as a stream of JSON documents.
func newReportWriter(jsonReport, markdownReport bool, output io.Writer) report.Writer {
	switch {
	case jsonReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case markdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output)
	}
}
