package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/imgcrawl/internal/transform"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "imgcrawl"

	// DefaultMaxDepth bounds recursion. The root page is depth 1, so 3 means
	// the root, its links and their links.
	DefaultMaxDepth = 3

	// DefaultIOSlots is the number of concurrent blocking operations
	// (page fetches, image downloads, writes).
	DefaultIOSlots = 16

	// DefaultBatchSize is the number of root URLs crawled at once in batch mode.
	DefaultBatchSize = 4

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDelay is the delay between requests to the same host.
	// Zero disables rate limiting.
	DefaultCrawlDelay = time.Duration(0)

	// DefaultUserAgent identifies imgcrawl in HTTP requests. The CLI appends
	// the build version.
	DefaultUserAgent = "imgcrawl (+https://github.com/nao1215/imgcrawl)"

	// DefaultMaxBodySize limits the HTML body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultMaxImageSize limits the bytes downloaded per image.
	DefaultMaxImageSize = 10 * 1024 * 1024 // 10MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// DefaultTransforms is the transform pipeline used when none is configured.
var DefaultTransforms = []string{"grayscale", "sepia", "tint"}

// Config holds all configuration options for imgcrawl.
// It is populated from built-in defaults, then the config file, then CLI
// flags, and passed through the application rather than kept in globals.
type Config struct {
	// Targets is the list of root URLs or local paths to crawl.
	Targets []string

	// MaxDepth is the depth bound. The root page is depth 1.
	MaxDepth int

	// Transforms are the transform names applied to every image, in order.
	Transforms []string

	// Concurrency bounds how many transforms run at once.
	Concurrency int

	// IOSlots bounds how many blocking I/O operations run at once.
	IOSlots int

	// BatchSize is the number of roots crawled concurrently.
	BatchSize int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// CrawlDelay is the minimum interval between requests to the same host.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum HTML body size in bytes. 0 means the default.
	MaxBodySize int64

	// MaxImageSize is the maximum image size in bytes. 0 means the default.
	MaxImageSize int64

	// SameHostOnly restricts hyperlinks to the host of the page they are on.
	SameHostOnly bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// CacheDir holds downloaded and transformed images.
	CacheDir string

	// DBDir holds the SQLite database.
	DBDir string

	// NoDB disables the database: claims are kept in memory for one run
	// and no history is recorded.
	NoDB bool

	// Fresh discards the claims of previous runs before crawling, so every
	// image is transformed again.
	Fresh bool

	// JSONReport selects JSON report output.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. Empty means stdout.
	ReportFile string

	// Progress shows a live progress indicator on stderr.
	Progress bool

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON selects JSON log output.
	LogJSON bool

	// ProxyAddress is a SOCKS5 proxy in "host:port" form. Empty means direct.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and crawls through it.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:          DefaultMaxDepth,
		Transforms:        append([]string(nil), DefaultTransforms...),
		Concurrency:       runtime.NumCPU(),
		IOSlots:           DefaultIOSlots,
		BatchSize:         DefaultBatchSize,
		Timeout:           DefaultTimeout,
		CrawlDelay:        DefaultCrawlDelay,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		MaxImageSize:      DefaultMaxImageSize,
		SameHostOnly:      true,
		CacheDir:          XDGCacheDir(),
		DBDir:             XDGDataDir(),
		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for imgcrawl.
// On Linux: ~/.local/share/imgcrawl
// On macOS: ~/Library/Application Support/imgcrawl
// On Windows: %LOCALAPPDATA%\imgcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for imgcrawl.
// On Linux: ~/.config/imgcrawl
// On macOS: ~/Library/Application Support/imgcrawl
// On Windows: %APPDATA%\imgcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for imgcrawl.
// On Linux: ~/.cache/imgcrawl
// On macOS: ~/Library/Caches/imgcrawl
// On Windows: %LOCALAPPDATA%\imgcrawl\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first error found; fixing one often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.MaxDepth < 1 {
		return ErrInvalidDepth
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.IOSlots <= 0 {
		return ErrInvalidIOSlots
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if len(c.Transforms) == 0 {
		return ErrNoTransforms
	}
	for _, name := range c.Transforms {
		if _, err := transform.Lookup(name); err != nil {
			return fmt.Errorf("%w: %q", ErrUnknownTransform, name)
		}
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.ProxyAddress != "" && c.UseTor {
		return ErrConflictingProxy
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxImageSize < 0 {
		return ErrInvalidMaxImageSize
	}
	return nil
}
