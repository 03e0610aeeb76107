package imagestore

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/imgcrawl/internal/model"
)

// DefaultMaxSize is the default download limit for one image.
const DefaultMaxSize = 10 * 1024 * 1024

// rawDir holds the original downloaded bytes.
const rawDir = "raw"

// Index records acquired images, for example in the crawl database.
type Index interface {
	RecordImage(ctx context.Context, cacheKey string, img *model.Image) error
}

// Waiter delays requests to a host. *crawler.HostLimiter implements it.
type Waiter interface {
	Wait(ctx context.Context, host string) error
}

// Store is an image acquirer with an on-disk cache and a sink for
// transformed images.
type Store struct {
	dir       string
	client    *http.Client
	maxSize   int64
	userAgent string
	limiter   Waiter
	index     Index
	logger    *slog.Logger

	group singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		if c != nil {
			s.client = c
		}
	}
}

// WithMaxSize sets the maximum image size in bytes.
func WithMaxSize(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithUserAgent sets the User-Agent header for downloads.
func WithUserAgent(ua string) Option {
	return func(s *Store) {
		s.userAgent = ua
	}
}

// WithRateLimit spaces downloads from the same host.
func WithRateLimit(w Waiter) Option {
	return func(s *Store) {
		s.limiter = w
	}
}

// WithIndex records every newly acquired image.
func WithIndex(idx Index) Option {
	return func(s *Store) {
		s.index = idx
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a store rooted at dir. The directory is created on first write.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:       dir,
		client:    http.DefaultClient,
		maxSize:   DefaultMaxSize,
		userAgent: "imgcrawl",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Key returns the cache key of an image URL.
func Key(imageURL string) string {
	sum := sha3.Sum256([]byte(imageURL))
	return hex.EncodeToString(sum[:])
}

// RawPath returns where the original bytes of imageURL are cached.
func (s *Store) RawPath(imageURL string) string {
	k := Key(imageURL)
	return filepath.Join(s.dir, rawDir, k[:2], k)
}

// Path returns where the result of transformName applied to imageURL is stored.
func (s *Store) Path(imageURL, transformName string) string {
	k := Key(imageURL)
	return filepath.Join(s.dir, transformName, k[:2], k+".png")
}

// Has reports whether a transformed result for imageURL already exists.
func (s *Store) Has(imageURL, transformName string) bool {
	_, err := os.Stat(s.Path(imageURL, transformName))
	return err == nil
}

// GetOrDownload returns the image at imageURL, reading it from the cache
// when present and downloading it otherwise.
func (s *Store) GetOrDownload(ctx context.Context, imageURL string) (*model.Image, error) {
	key := Key(imageURL)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.load(ctx, imageURL, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("image download shared", "url", imageURL)
	}
	return v.(*model.Image), nil //nolint:forcetypeassert // load always returns *model.Image
}

func (s *Store) load(ctx context.Context, imageURL, key string) (*model.Image, error) {
	path := filepath.Join(s.dir, rawDir, key[:2], key)

	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a hash
	switch {
	case err == nil:
		img, decodeErr := decode(imageURL, data)
		if decodeErr == nil {
			s.logger.Debug("image cache hit", "url", imageURL)
			return img, nil
		}
		// Corrupt cache entry: download again.
		s.logger.Debug("discarding unreadable cache entry", "url", imageURL, "error", decodeErr)
		_ = os.Remove(path) //nolint:errcheck // rewritten below
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read cached image: %w", err)
	}

	data, err = s.fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	img, err := decode(imageURL, data)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(path, data); err != nil {
		return nil, fmt.Errorf("failed to cache image: %w", err)
	}
	s.logger.Debug("image downloaded", "url", imageURL, "bytes", len(data), "format", img.Format)

	if s.index != nil {
		if err := s.index.RecordImage(ctx, key, img); err != nil {
			s.logger.Warn("failed to index image", "url", imageURL, "error", err)
		}
	}
	return img, nil
}

// fetch reads the image bytes from an http(s) or file URL.
func (s *Store) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return s.fetchHTTP(ctx, u)
	case "file":
		return s.fetchFile(ctx, filepath.FromSlash(u.Path))
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrDownload, u.Scheme)
	}
}

func (s *Store) fetchHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, u.Host); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "image/png,image/jpeg,image/gif,image/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s returned %d", ErrDownload, u, resp.StatusCode)
	}
	if resp.ContentLength > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, resp.ContentLength)
	}
	return s.readLimited(resp.Body)
}

func (s *Store) fetchFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.readLimited(f)
}

// readLimited reads at most maxSize bytes and fails when more are available.
func (s *Store) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, s.maxSize)
	}
	return data, nil
}

// Save encodes img as PNG under the transform's directory and returns the path.
func (s *Store) Save(ctx context.Context, img *model.Image, transformName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if img == nil || img.Decoded == nil {
		return "", fmt.Errorf("%w: nothing to save", ErrUnsupportedFormat)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Decoded); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	path := s.Path(img.SourceURL, transformName)
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return path, nil
}

func decode(imageURL string, data []byte) (*model.Image, error) {
	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err) //nolint:errorlint // decoder errors are not part of the API
	}
	tags, orientation := extractEXIF(data)
	return &model.Image{
		SourceURL:   imageURL,
		Format:      format,
		Data:        data,
		Decoded:     decoded,
		Orientation: orientation,
		EXIF:        tags,
	}, nil
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place, so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
