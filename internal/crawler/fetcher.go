package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/imgcrawl/internal/model"
)

// DefaultMaxBodySize is the default limit for a fetched HTML document.
const DefaultMaxBodySize = 5 * 1024 * 1024

// PageFetcher returns the page at a URL.
// Implementations are network- or disk-bound; the crawler calls them through
// the Blocking-I/O Boundary.
type PageFetcher interface {
	GetPage(ctx context.Context, pageURL string) (*model.Page, error)
}

// FetcherOption configures the HTTP and file fetchers.
type FetcherOption func(*fetcherConfig)

type fetcherConfig struct {
	userAgent   string
	maxBodySize int64
	limiter     *HostLimiter
	filter      *LinkFilter
}

// WithFetcherUserAgent sets the User-Agent header.
func WithFetcherUserAgent(ua string) FetcherOption {
	return func(c *fetcherConfig) {
		c.userAgent = ua
	}
}

// WithFetcherMaxBodySize sets the maximum document size that is parsed.
func WithFetcherMaxBodySize(size int64) FetcherOption {
	return func(c *fetcherConfig) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithFetcherRateLimit spaces requests to the same host.
func WithFetcherRateLimit(l *HostLimiter) FetcherOption {
	return func(c *fetcherConfig) {
		c.limiter = l
	}
}

// WithFetcherLinkFilter restricts which hyperlinks are returned.
func WithFetcherLinkFilter(f *LinkFilter) FetcherOption {
	return func(c *fetcherConfig) {
		c.filter = f
	}
}

func newFetcherConfig(opts []FetcherOption) fetcherConfig {
	cfg := fetcherConfig{
		userAgent:   "imgcrawl",
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// HTTPFetcher fetches pages over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
	cfg    fetcherConfig
}

// NewHTTPFetcher creates a fetcher using client. A nil client uses a
// default one from NewHTTPClient.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = NewHTTPClient(ClientOptions{})
	}
	return &HTTPFetcher{
		client: client,
		cfg:    newFetcherConfig(opts),
	}
}

// GetPage fetches and parses the HTML page at pageURL.
func (f *HTTPFetcher) GetPage(ctx context.Context, pageURL string) (*model.Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	if err := f.cfg.limiter.Wait(ctx, u.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, pageURL, resp.StatusCode)
	}
	if !isHTMLContentType(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.maxBodySize))
	if err != nil {
		return nil, err
	}

	// Relative links resolve against the final URL after redirects.
	base := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL.String()
	}
	return parsePage(pageURL, base, body, f.cfg.filter)
}

func isHTMLContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// FileFetcher reads pages from the local filesystem for file:// URLs.
// A directory URL is served by its index.html.
type FileFetcher struct {
	cfg fetcherConfig
}

// NewFileFetcher creates a local filesystem fetcher.
func NewFileFetcher(opts ...FetcherOption) *FileFetcher {
	return &FileFetcher{cfg: newFetcherConfig(opts)}
}

// GetPage reads and parses the HTML file at pageURL.
func (f *FileFetcher) GetPage(ctx context.Context, pageURL string) (*model.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := FilePath(pageURL)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		path = filepath.Join(path, "index.html")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, path)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, f.cfg.maxBodySize))
	if err != nil {
		return nil, err
	}
	return parsePage(pageURL, fileURL(path), body, f.cfg.filter)
}

// MultiFetcher dispatches to a fetcher by URL scheme.
type MultiFetcher struct {
	fetchers map[string]PageFetcher
}

// NewMultiFetcher creates a fetcher serving http and https with web and
// file with local. Either may be nil.
func NewMultiFetcher(web, local PageFetcher) *MultiFetcher {
	m := &MultiFetcher{fetchers: make(map[string]PageFetcher)}
	if web != nil {
		m.fetchers["http"] = web
		m.fetchers["https"] = web
	}
	if local != nil {
		m.fetchers["file"] = local
	}
	return m
}

// GetPage fetches pageURL with the fetcher registered for its scheme.
func (m *MultiFetcher) GetPage(ctx context.Context, pageURL string) (*model.Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	f, ok := m.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return f.GetPage(ctx, pageURL)
}

// parsePage parses body, drops hyperlinks rejected by filter and returns
// the page identified by pageURL.
func parsePage(pageURL, baseURL string, body []byte, filter *LinkFilter) (*model.Page, error) {
	parser, err := NewParser(baseURL)
	if err != nil {
		return nil, err
	}
	result, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	elements := make([]model.PageElement, 0, len(result.Elements))
	for _, e := range result.Elements {
		if e.Kind == model.KindPage && !filter.Allow(baseURL, e.URL) {
			continue
		}
		elements = append(elements, e)
	}
	return model.NewPage(pageURL, result.Title, elements...), nil
}

// NormalizeRootURL turns user input into a crawlable root URL.
// http, https and file URLs are kept. An existing local path becomes an
// absolute file:// URL. Anything else is assumed to be a host and gets the
// http scheme. A web URL without a path gets "/", so the root and a link
// to "/" are the same page.
func NormalizeRootURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoPage
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid URL %q: %w", raw, err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return withRootPath(u), nil
		case "file":
			return u.String(), nil
		default:
			return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
		}
	}

	if _, err := os.Stat(raw); err == nil {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return "", err
		}
		return fileURL(abs), nil
	}

	u, err := url.Parse("http://" + raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	return withRootPath(u), nil
}

func withRootPath(u *url.URL) string {
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}
	return u.String()
}

// FilePath returns the local path of a file:// URL.
func FilePath(fileURLString string) (string, error) {
	u, err := url.Parse(fileURLString)
	if err != nil {
		return "", fmt.Errorf("invalid file URL: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
