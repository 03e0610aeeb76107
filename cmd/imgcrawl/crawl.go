package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nao1215/imgcrawl/internal/batch"
	"github.com/nao1215/imgcrawl/internal/config"
	"github.com/nao1215/imgcrawl/internal/crawler"
	"github.com/nao1215/imgcrawl/internal/database"
	"github.com/nao1215/imgcrawl/internal/imagestore"
	"github.com/nao1215/imgcrawl/internal/log"
	"github.com/nao1215/imgcrawl/internal/model"
	"github.com/nao1215/imgcrawl/internal/report"
	"github.com/nao1215/imgcrawl/internal/tor"
	"github.com/nao1215/imgcrawl/internal/transform"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [flags] <url|path>...",
		Short: "Crawl websites and transform their images",
		Long: `Crawl one or more websites starting at the given root pages.

Every page up to --depth is fetched (the root page is depth 1). Every image
found is downloaded once, cached, and passed through each transform. The
report shows how many transformed images were produced.

A root may be an http(s) URL, a file:// URL, a local HTML file or a host name.
With more than one root, up to --batch roots are crawled at once.

Images already transformed by a previous run are skipped. Use --fresh to
transform everything again, or --no-db to keep claims in memory only.

Examples:
  # Crawl a site three levels deep with the default transforms
  imgcrawl crawl https://example.com

  # Only grayscale and mirror, two levels
  imgcrawl crawl -d 2 -t grayscale,mirror https://example.com

  # Crawl every root listed in a file and write a Markdown report
  imgcrawl crawl --list sites.txt --markdown -o report.md

  # Crawl an onion service through the embedded Tor daemon
  imgcrawl crawl --tor http://example.onion`,
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth, "Maximum crawl depth (root page is 1)")
	cmd.Flags().StringSliceP("transforms", "t", config.DefaultTransforms, "Transforms to apply, in order")
	cmd.Flags().IntP("concurrency", "n", 0, "Transforms running at once (default: number of CPUs)")
	cmd.Flags().Int("io-slots", config.DefaultIOSlots, "Concurrent fetches, downloads and writes")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Roots crawled at once")
	cmd.Flags().StringP("list", "l", "", "File with one root per line")
	cmd.Flags().Duration("timeout", config.DefaultTimeout, "Per-request timeout")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay, "Minimum delay between requests to one host")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize, "Maximum HTML body size in bytes")
	cmd.Flags().Int64("max-image-size", config.DefaultMaxImageSize, "Maximum image size in bytes")
	cmd.Flags().Bool("allow-external", false, "Follow links to other hosts")
	cmd.Flags().StringP("config", "c", "", "Path to config file (default: .imgcrawl)")
	cmd.Flags().String("cache-dir", "", "Directory for cached and transformed images (default: XDG cache dir)")
	cmd.Flags().String("db-dir", "", "Directory for the crawl database (default: XDG data dir)")
	cmd.Flags().Bool("no-db", false, "Keep claims in memory and record no history")
	cmd.Flags().Bool("fresh", false, "Forget previous claims and transform every image again")
	cmd.Flags().BoolP("json", "j", false, "Output report in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output report in Markdown format")
	cmd.Flags().StringP("output", "o", "", "Write report to file instead of stdout")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (e.g. 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false, "Start an embedded Tor daemon and crawl through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout, "Embedded Tor startup timeout")
	cmd.Flags().Bool("progress", false, "Show a progress indicator on stderr")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	format := log.FormatText
	if cfg.LogJSON {
		format = log.FormatJSON
	}
	logger := log.NewLogger(cmd.ErrOrStderr(), format, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cmd, cfg, logger)
}

// getBoolFlag reads a bool flag from the command or the root's persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// buildConfig creates a Config from defaults, the config file and flags,
// in that order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.UserAgent = userAgent()
	flags := cmd.Flags()

	var err error
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Transforms, err = flags.GetStringSlice("transforms"); err != nil {
		return nil, err
	}
	concurrency, err := flags.GetInt("concurrency")
	if err != nil {
		return nil, err
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if cfg.IOSlots, err = flags.GetInt("io-slots"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.MaxImageSize, err = flags.GetInt64("max-image-size"); err != nil {
		return nil, err
	}
	allowExternal, err := flags.GetBool("allow-external")
	if err != nil {
		return nil, err
	}
	cfg.SameHostOnly = !allowExternal

	if dir, err := flags.GetString("cache-dir"); err != nil {
		return nil, err
	} else if dir != "" {
		cfg.CacheDir = dir
	}
	if dir, err := flags.GetString("db-dir"); err != nil {
		return nil, err
	} else if dir != "" {
		cfg.DBDir = dir
	}
	if cfg.NoDB, err = flags.GetBool("no-db"); err != nil {
		return nil, err
	}
	if cfg.Fresh, err = flags.GetBool("fresh"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.Progress, err = flags.GetBool("progress"); err != nil {
		return nil, err
	}
	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file, flags.Changed)
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = append(cfg.Targets, args...)
	listPath, err := flags.GetString("list")
	if err != nil {
		return nil, err
	}
	if listPath != "" {
		roots, err := readRootList(listPath)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, roots...)
	}

	return cfg, nil
}

// readRootList reads one root per line. Blank lines and lines starting
// with # are skipped.
func readRootList(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open root list: %w", err)
	}
	defer f.Close()

	var roots []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		roots = append(roots, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read root list: %w", err)
	}
	return roots, nil
}

// session holds what every root of one invocation shares.
type session struct {
	cfg        *config.Config
	logger     *slog.Logger
	transforms []transform.Transform
	db         *database.CrawlDB
	memGate    *crawler.MemoryGate
	proxy      *tor.Client
	limiter    *crawler.HostLimiter
	boundary   *crawler.Boundary
	progress   crawler.ProgressFunc
}

// runCrawl crawls every target and writes the report.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	roots, err := normalizeRoots(cfg)
	if err != nil {
		return err
	}

	transforms, err := transform.Parse(cfg.Transforms)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	s := &session{
		cfg:        cfg,
		logger:     logger,
		transforms: transforms,
		limiter:    crawler.NewHostLimiter(cfg.CrawlDelay),
		boundary:   crawler.NewBoundary(cfg.IOSlots),
	}

	if cfg.NoDB {
		s.memGate = crawler.NewMemoryGate()
	} else {
		db, err := openDatabase(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		s.db = db
	}

	switch {
	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s)",
				status, cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		s.proxy = client
	case cfg.UseTor:
		client, embeddedTor, err := startEmbeddedTor(ctx, cmd.ErrOrStderr(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
		s.proxy = client
	}

	if cfg.Progress {
		bar := newProgressBar(cmd.ErrOrStderr())
		defer bar.Finish() //nolint:errcheck // display only
		s.progress = func(int64) {
			_ = bar.Add(1) //nolint:errcheck // display only
		}
	}

	if len(roots) == 1 {
		crawlReport, crawlErr := s.crawlRoot(ctx, roots[0])
		if crawlReport != nil {
			if err := outputReport(cmd, cfg, func(w report.Writer) error {
				_, err := w.Write(crawlReport)
				return err
			}); err != nil {
				return err
			}
		}
		return crawlErr
	}

	runner := batch.NewRunner(
		batch.WithConcurrency(cfg.BatchSize),
		batch.WithLogger(logger),
	)
	reports, crawlErr := runner.Run(ctx, roots, s.crawlRoot)
	reports = completedReports(reports)
	if err := outputReport(cmd, cfg, func(w report.Writer) error {
		_, err := w.WriteBatch(reports)
		return err
	}); err != nil {
		return err
	}
	return crawlErr
}

// normalizeRoots turns the targets into root URLs. Onion roots need a proxy.
func normalizeRoots(cfg *config.Config) ([]string, error) {
	roots := make([]string, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		root, err := crawler.NormalizeRootURL(target)
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", target, err)
		}
		u, err := url.Parse(root)
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", target, err)
		}
		if tor.IsOnionHost(u.Hostname()) && cfg.ProxyAddress == "" && !cfg.UseTor {
			return nil, fmt.Errorf("%s is an onion service: use --tor or --proxy", root)
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// completedReports drops the slots of roots that never started.
func completedReports(reports []*model.CrawlReport) []*model.CrawlReport {
	out := make([]*model.CrawlReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// openDatabase opens the crawl database and drops the claims that must
// not survive into this run.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*database.CrawlDB, error) {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "path", db.Path())

	if cfg.Fresh {
		n, err := db.ResetClaims(ctx)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("claims reset", "deleted", n)
		return db, nil
	}

	n, err := db.PruneFailedClaims(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if n > 0 {
		logger.Info("unfinished claims released for retry", "count", n)
	}
	return db, nil
}

// crawlRoot crawls one root with a crawler of its own. It satisfies
// batch.CrawlFunc.
func (s *session) crawlRoot(ctx context.Context, root string) (*model.CrawlReport, error) {
	cfg := s.cfg
	runID := uuid.NewString()

	site := config.SiteConfig{}
	if u, err := url.Parse(root); err == nil && cfg.SiteConfigs != nil {
		site = cfg.SiteConfigs.GetSiteConfig(u.Hostname())
	}
	maxDepth := cfg.MaxDepth
	if site.Depth > 0 {
		maxDepth = site.Depth
	}

	client := crawler.NewHTTPClient(crawler.ClientOptions{
		Timeout: cfg.Timeout,
		Cookie:  site.Cookie,
		Headers: site.Headers,
	})
	if s.proxy != nil {
		client = s.proxy.HTTPClient(site.Cookie, site.Headers)
	}

	filter := &crawler.LinkFilter{
		SameHostOnly:   cfg.SameHostOnly,
		IgnorePatterns: site.IgnorePatterns,
		FollowPatterns: site.FollowPatterns,
	}
	fetcherOpts := []crawler.FetcherOption{
		crawler.WithFetcherUserAgent(cfg.UserAgent),
		crawler.WithFetcherMaxBodySize(cfg.MaxBodySize),
		crawler.WithFetcherRateLimit(s.limiter),
		crawler.WithFetcherLinkFilter(filter),
	}
	fetcher := crawler.NewMultiFetcher(
		crawler.NewHTTPFetcher(client, fetcherOpts...),
		crawler.NewFileFetcher(fetcherOpts...),
	)

	storeOpts := []imagestore.Option{
		imagestore.WithHTTPClient(client),
		imagestore.WithMaxSize(cfg.MaxImageSize),
		imagestore.WithUserAgent(cfg.UserAgent),
		imagestore.WithLogger(s.logger),
	}
	if s.limiter != nil {
		storeOpts = append(storeOpts, imagestore.WithRateLimit(s.limiter))
	}
	if s.db != nil {
		storeOpts = append(storeOpts, imagestore.WithIndex(s.db))
	}
	store := imagestore.New(cfg.CacheDir, storeOpts...)

	var gate crawler.CacheGate = s.memGate
	if s.db != nil {
		gate = s.db.Gate(runID)
	}

	c := crawler.New(fetcher, store,
		crawler.WithRunID(runID),
		crawler.WithMaxDepth(maxDepth),
		crawler.WithTransforms(s.transforms...),
		crawler.WithCacheGate(gate),
		crawler.WithSink(store),
		crawler.WithBoundary(s.boundary),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithLogger(s.logger.With("root", root)),
		crawler.WithProgress(s.progress),
	)

	if s.db != nil {
		pending := model.NewCrawlReport(runID, root, maxDepth, c.TransformNames())
		if err := s.db.StartRun(ctx, pending); err != nil {
			s.logger.Warn("failed to record run start", "run", runID, "error", err)
		}
	}

	crawlReport, err := c.Crawl(ctx, root)

	if s.db != nil && crawlReport != nil {
		if dbErr := s.db.FinishRun(context.WithoutCancel(ctx), crawlReport); dbErr != nil {
			s.logger.Warn("failed to record run result", "run", runID, "error", dbErr)
		}
	}
	return crawlReport, err
}

// newProgressBar returns a spinner that counts produced images.
func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("transforming images"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("img"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

// newWriter returns the report writer selected by the config.
func newWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output,
			report.WithPrettyPrint(),
			report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// outputReport opens the report destination and calls write with the
// selected writer.
func outputReport(cmd *cobra.Command, cfg *config.Config, write func(report.Writer) error) error {
	output := cmd.OutOrStdout()
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports list the crawled URLs, so only the owner may read them.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	if err := write(newWriter(cfg, output)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// startEmbeddedTor starts an embedded Tor daemon and returns a verified
// client for its SOCKS proxy.
func startEmbeddedTor(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) (*tor.Client, *tor.EmbeddedTor, error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)
	fmt.Fprintf(out, "SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())

	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}

	return client, embeddedTor, nil
}
