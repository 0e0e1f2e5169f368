package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitemirror"

	// DefaultOutputDir is where a mirror is written when no directory is given.
	DefaultOutputDir = "./scraped_site"

	// DefaultMaxDepth is the number of link hops followed from the seed.
	// 20 reaches every page of typical sites while still stopping
	// generated link chains.
	DefaultMaxDepth = 20

	// DefaultDelay is the pause after each saved resource.
	// One second keeps the load on the mirrored server low.
	DefaultDelay = 1 * time.Second

	// DefaultTimeout bounds each GET request.
	DefaultTimeout = 30 * time.Second

	// DefaultHeadTimeout bounds each HEAD request used for content types.
	// The lookup is best effort, so it gets a shorter budget than the GET.
	DefaultHeadTimeout = 10 * time.Second

	// DefaultBatchSize is the number of seeds mirrored concurrently.
	DefaultBatchSize = 4

	// DefaultUserAgent is sent with every request.
	// Some servers reject requests without a browser-like User-Agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// DefaultMaxBodySize is the largest accepted response body.
	DefaultMaxBodySize = 100 * 1024 * 1024 // 100MB
)

// Config holds all configuration options for sitemirror.
// It is populated from CLI flags and passed through the application
// rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// because the number of options is small and every command reads only a
// handful of them.
type Config struct {
	// Seeds are the URLs to mirror. Each seed is mirrored independently.
	Seeds []string

	// OutputDir is the root of the mirrored tree. With several seeds each
	// site goes to a subdirectory named after its host.
	OutputDir string

	// MaxDepth is the maximum number of link hops from the seed.
	// Depth 0 means only the seed itself.
	MaxDepth int

	// Delay is the pause after each saved resource.
	Delay time.Duration

	// Timeout bounds each GET request.
	Timeout time.Duration

	// HeadTimeout bounds each HEAD request.
	HeadTimeout time.Duration

	// MaxPages stops a run after this many resources. 0 means no limit.
	MaxPages int

	// BreadthFirst switches the traversal from depth-first to breadth-first.
	BreadthFirst bool

	// BatchSize is the number of seeds mirrored concurrently.
	BatchSize int

	// ProxyAddress routes requests through a SOCKS5 proxy ("host:port").
	// Empty means direct connections.
	ProxyAddress string

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize is the largest accepted response body in bytes.
	// Larger resources are recorded as failed instead of truncated.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the config file.
	SiteConfigs *File

	// JSONReport selects JSON report output. Mutually exclusive with
	// MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output. Mutually exclusive with
	// JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// DBDir is the directory holding the run journal.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveHistory records runs in the journal.
	SaveHistory bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because most defaults are non-zero.
func NewConfig() *Config {
	return &Config{
		OutputDir:   DefaultOutputDir,
		MaxDepth:    DefaultMaxDepth,
		Delay:       DefaultDelay,
		Timeout:     DefaultTimeout,
		HeadTimeout: DefaultHeadTimeout,
		BatchSize:   DefaultBatchSize,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		DBDir:       XDGDataDir(),
		SaveHistory: true,
	}
}

// XDGDataDir returns the XDG data directory for sitemirror.
// On Linux: ~/.local/share/sitemirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitemirror.
// On Linux: ~/.config/sitemirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Design decision: We validate once after CLI parsing rather than at each
// point of use so mistakes fail fast, before any request is sent.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if c.OutputDir == "" {
		return ErrEmptyOutputDir
	}
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.HeadTimeout <= 0 {
		return ErrInvalidHeadTimeout
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

// SiteSettings returns the effective settings for host: the global values
// overridden by the config file's defaults and then by its entry for host.
func (c *Config) SiteSettings(host string) SiteConfig {
	settings := SiteConfig{
		Depth:     c.MaxDepth,
		Delay:     c.Delay,
		UserAgent: c.UserAgent,
	}
	if c.SiteConfigs == nil {
		return settings
	}
	return mergeSiteConfig(settings, c.SiteConfigs.GetSiteConfig(host))
}
