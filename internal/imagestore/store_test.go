package imagestore

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/imgcrawl/internal/model"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// imageServer serves /cat.png, /big.png, /text.txt and counts requests per path.
type imageServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests map[string]int
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()

	small := testPNG(t, 4, 3)
	big := testPNG(t, 256, 256)
	s := &imageServer{requests: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++
		s.mu.Unlock()

		switch r.URL.Path {
		case "/cat.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(small) //nolint:errcheck
		case "/big.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(big) //nolint:errcheck
		case "/text.txt":
			w.Write([]byte("not an image")) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

type memoryIndex struct {
	mu   sync.Mutex
	keys []string
}

func (m *memoryIndex) RecordImage(_ context.Context, key string, _ *model.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func TestGetOrDownload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("downloads once and caches", func(t *testing.T) {
		t.Parallel()

		srv := newImageServer(t)
		idx := &memoryIndex{}
		store := New(t.TempDir(), WithHTTPClient(srv.Client()), WithIndex(idx))

		img, err := store.GetOrDownload(ctx, srv.URL+"/cat.png")
		if err != nil {
			t.Fatalf("failed to download: %v", err)
		}
		if img.Format != "png" || img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
			t.Errorf("unexpected image: format=%s bounds=%v", img.Format, img.Bounds())
		}
		if img.SourceURL != srv.URL+"/cat.png" {
			t.Errorf("unexpected source URL %q", img.SourceURL)
		}

		if _, err := store.GetOrDownload(ctx, srv.URL+"/cat.png"); err != nil {
			t.Fatalf("failed to read from cache: %v", err)
		}
		if got := srv.count("/cat.png"); got != 1 {
			t.Errorf("expected 1 request, got %d", got)
		}
		if _, err := os.Stat(store.RawPath(srv.URL + "/cat.png")); err != nil {
			t.Errorf("expected cached file: %v", err)
		}
		if len(idx.keys) != 1 || idx.keys[0] != Key(srv.URL+"/cat.png") {
			t.Errorf("expected one indexed image, got %v", idx.keys)
		}
	})

	t.Run("concurrent requests share one download", func(t *testing.T) {
		t.Parallel()

		srv := newImageServer(t)
		store := New(t.TempDir(), WithHTTPClient(srv.Client()))

		var wg sync.WaitGroup
		var failures atomic.Int64
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.GetOrDownload(ctx, srv.URL+"/cat.png"); err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()

		if failures.Load() != 0 {
			t.Errorf("expected no failures, got %d", failures.Load())
		}
		if got := srv.count("/cat.png"); got != 1 {
			t.Errorf("expected 1 request, got %d", got)
		}
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()

		srv := newImageServer(t)
		store := New(t.TempDir(), WithHTTPClient(srv.Client()), WithMaxSize(64))

		_, err := store.GetOrDownload(ctx, srv.URL+"/big.png")
		if !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("expected ErrImageTooLarge, got %v", err)
		}
	})

	t.Run("not an image", func(t *testing.T) {
		t.Parallel()

		srv := newImageServer(t)
		store := New(t.TempDir(), WithHTTPClient(srv.Client()))

		_, err := store.GetOrDownload(ctx, srv.URL+"/text.txt")
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
		if _, statErr := os.Stat(store.RawPath(srv.URL + "/text.txt")); statErr == nil {
			t.Error("expected undecodable data not to be cached")
		}
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		srv := newImageServer(t)
		store := New(t.TempDir(), WithHTTPClient(srv.Client()))

		_, err := store.GetOrDownload(ctx, srv.URL+"/missing.png")
		if !errors.Is(err, ErrDownload) {
			t.Errorf("expected ErrDownload, got %v", err)
		}
	})

	t.Run("file url", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "local.png")
		if err := os.WriteFile(path, testPNG(t, 2, 2), 0o600); err != nil {
			t.Fatalf("failed to write image: %v", err)
		}
		fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()

		store := New(filepath.Join(dir, "cache"))
		img, err := store.GetOrDownload(ctx, fileURL)
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if img.Bounds().Dx() != 2 {
			t.Errorf("unexpected bounds %v", img.Bounds())
		}
	})
}

func TestSave(t *testing.T) {
	t.Parallel()

	store := New(t.TempDir())
	src := &model.Image{
		SourceURL: "http://example.com/a.png",
		Decoded:   image.NewNRGBA(image.Rect(0, 0, 3, 2)),
	}

	path, err := store.Save(context.Background(), src, "grayscale")
	if err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if path != store.Path(src.SourceURL, "grayscale") {
		t.Errorf("unexpected path %q", path)
	}
	if !store.Has(src.SourceURL, "grayscale") || store.Has(src.SourceURL, "sepia") {
		t.Error("unexpected Has result")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("failed to decode saved png: %v", err)
	}
	if decoded.Bounds().Dx() != 3 || decoded.Bounds().Dy() != 2 {
		t.Errorf("unexpected bounds %v", decoded.Bounds())
	}

	if _, err := store.Save(context.Background(), nil, "grayscale"); err == nil {
		t.Error("expected an error for a nil image")
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	a := Key("http://example.com/a.png")
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == Key("http://example.com/b.png") {
		t.Error("expected different keys for different URLs")
	}
	if a != Key("http://example.com/a.png") {
		t.Error("expected a stable key")
	}
}

func TestParseOrientation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     any
		formatted string
		want      int
	}{
		{name: "uint16 slice", value: []uint16{6}, want: 6},
		{name: "uint16", value: uint16(3), want: 3},
		{name: "formatted", value: nil, formatted: "[8]", want: 8},
		{name: "out of range", value: []uint16{9}, want: 0},
		{name: "garbage", value: nil, formatted: "up", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := parseOrientation(tt.value, tt.formatted); got != tt.want {
				t.Errorf("parseOrientation() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExtractEXIFWithoutData(t *testing.T) {
	t.Parallel()

	tags, orientation := extractEXIF(testPNG(t, 1, 1))
	if tags != nil || orientation != 0 {
		t.Errorf("expected no EXIF, got %v %d", tags, orientation)
	}
}
