package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/imgcrawl/internal/model"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body>
			<img src="/img/a.png">
			<a href="/about">About</a>
			<a href="http://elsewhere.example/">Elsewhere</a>
		</body></html>`)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><img src="pic.png"></body></html>`)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><title>%s|%s|%s</title></head></html>`,
			r.Header.Get("User-Agent"), r.Header.Get("Cookie"), r.Header.Get("X-Test"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	server := newTestSite(t)
	ctx := context.Background()

	t.Run("fetches and parses a page", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(server.Client())
		page, err := f.GetPage(ctx, server.URL+"/")
		if err != nil {
			t.Fatalf("failed to fetch: %v", err)
		}
		if page.Title != "Home" {
			t.Errorf("expected title Home, got %q", page.Title)
		}
		if got := page.ElementURLs(model.KindImage); !slices.Equal(got, []string{server.URL + "/img/a.png"}) {
			t.Errorf("images = %v", got)
		}
		if got := page.ElementURLs(model.KindPage); len(got) != 2 {
			t.Errorf("expected 2 links without a filter, got %v", got)
		}
	})

	t.Run("link filter drops external links", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(server.Client(), WithFetcherLinkFilter(&LinkFilter{SameHostOnly: true}))
		page, err := f.GetPage(ctx, server.URL+"/")
		if err != nil {
			t.Fatalf("failed to fetch: %v", err)
		}
		if got := page.ElementURLs(model.KindPage); !slices.Equal(got, []string{server.URL + "/about"}) {
			t.Errorf("links = %v", got)
		}
	})

	t.Run("resolves against the redirect target", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(server.Client())
		page, err := f.GetPage(ctx, server.URL+"/old")
		if err != nil {
			t.Fatalf("failed to fetch: %v", err)
		}
		if page.URL != server.URL+"/old" {
			t.Errorf("expected page identity to stay the requested URL, got %q", page.URL)
		}
		if got := page.ElementURLs(model.KindImage); !slices.Equal(got, []string{server.URL + "/docs/pic.png"}) {
			t.Errorf("images = %v", got)
		}
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPFetcher(server.Client()).GetPage(ctx, server.URL+"/missing")
		if !errors.Is(err, ErrHTTPStatus) {
			t.Errorf("expected ErrHTTPStatus, got %v", err)
		}
	})

	t.Run("non html content", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPFetcher(server.Client()).GetPage(ctx, server.URL+"/data.json")
		if !errors.Is(err, ErrNotHTML) {
			t.Errorf("expected ErrNotHTML, got %v", err)
		}
	})

	t.Run("sends user agent, cookie and headers", func(t *testing.T) {
		t.Parallel()

		client := NewHTTPClient(ClientOptions{
			Cookie:  "session=abc",
			Headers: map[string]string{"X-Test": "yes"},
		})
		f := NewHTTPFetcher(client, WithFetcherUserAgent("imgcrawl-test"))
		page, err := f.GetPage(ctx, server.URL+"/headers")
		if err != nil {
			t.Fatalf("failed to fetch: %v", err)
		}
		if page.Title != "imgcrawl-test|session=abc|yes" {
			t.Errorf("unexpected request headers: %q", page.Title)
		}
	})
}

func TestHTTPFetcher_DropsLocalReferences(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "private.png"), "not served")
	writeFile(t, filepath.Join(dir, "local.html"), `<html><body><img src="secret.png"></body></html>`)
	localImage := fileURL(filepath.Join(dir, "private.png"))
	localPage := fileURL(filepath.Join(dir, "local.html"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><base href="file:///"></head><body>
			<img src="%s">
			<img src="etc/hosts.png">
			<a href="%s">local</a>
		</body></html>`, localImage, localPage)
	}))
	t.Cleanup(server.Close)

	m := NewMultiFetcher(NewHTTPFetcher(server.Client()), NewFileFetcher())
	page, err := m.GetPage(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("failed to fetch: %v", err)
	}
	for _, e := range page.Elements {
		if strings.HasPrefix(e.URL, "file:") {
			t.Errorf("web page must not reference local files, got %s %s", e.Kind, e.URL)
		}
	}
}

func TestFileFetcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), `<html><body><img src="cat.png"><a href="sub/page.html">sub</a></body></html>`)
	writeFile(t, filepath.Join(dir, "sub", "page.html"), `<html><body><img src="../dog.jpg"></body></html>`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")

	root, err := NormalizeRootURL(dir)
	if err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	f := NewFileFetcher()
	ctx := context.Background()

	t.Run("directory serves index.html", func(t *testing.T) {
		t.Parallel()

		page, err := f.GetPage(ctx, root)
		if err != nil {
			t.Fatalf("failed to fetch: %v", err)
		}
		images := page.ElementURLs(model.KindImage)
		if len(images) != 1 || !strings.HasSuffix(images[0], "/cat.png") {
			t.Errorf("images = %v", images)
		}
		links := page.ElementURLs(model.KindPage)
		if len(links) != 1 || !strings.HasPrefix(links[0], "file://") || !strings.HasSuffix(links[0], "/sub/page.html") {
			t.Errorf("links = %v", links)
		}
	})

	t.Run("relative paths resolve against the file", func(t *testing.T) {
		t.Parallel()

		page, err := f.GetPage(ctx, root+"/sub/page.html")
		if err != nil {
			t.Fatalf("failed to fetch: %v", err)
		}
		images := page.ElementURLs(model.KindImage)
		want := root + "/dog.jpg"
		if len(images) != 1 || images[0] != want {
			t.Errorf("images = %v, want %s", images, want)
		}
	})

	t.Run("non html file", func(t *testing.T) {
		t.Parallel()

		_, err := f.GetPage(ctx, root+"/notes.txt")
		if !errors.Is(err, ErrNotHTML) {
			t.Errorf("expected ErrNotHTML, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := f.GetPage(ctx, root+"/nope.html"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestMultiFetcher(t *testing.T) {
	t.Parallel()

	m := NewMultiFetcher(nil, NewFileFetcher())
	_, err := m.GetPage(context.Background(), "http://example.com/")
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestNormalizeRootURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "http kept", input: "http://example.com/a", want: "http://example.com/a"},
		{name: "https gets root path", input: " https://example.com ", want: "https://example.com/"},
		{name: "bare host", input: "example.com", want: "http://example.com/"},
		{name: "bare host with query", input: "example.com:8080?q=1", want: "http://example.com:8080/?q=1"},
		{name: "unsupported scheme", input: "ftp://example.com", wantErr: ErrUnsupportedScheme},
		{name: "empty", input: "", wantErr: ErrNoPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeRootURL(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeRootURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}
