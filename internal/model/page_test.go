package model

import (
	"image"
	"testing"
)

// TestPageElements tests element filtering by kind.
func TestPageElements(t *testing.T) {
	t.Parallel()

	page := NewPage("http://example.com/", "Example",
		PageElement{Kind: KindImage, URL: "http://example.com/a.png"},
		PageElement{Kind: KindPage, URL: "http://example.com/next"},
		PageElement{Kind: KindImage, URL: "http://example.com/b.png"},
		PageElement{Kind: KindImage, URL: "http://example.com/a.png"},
	)

	t.Run("filters images", func(t *testing.T) {
		t.Parallel()
		images := page.Elements(KindImage)
		if len(images) != 3 {
			t.Fatalf("expected 3 image elements, got %d", len(images))
		}
		for _, e := range images {
			if e.Kind != KindImage {
				t.Errorf("expected image kind, got %s", e.Kind)
			}
		}
	})

	t.Run("filters pages", func(t *testing.T) {
		t.Parallel()
		pages := page.Elements(KindPage)
		if len(pages) != 1 || pages[0].URL != "http://example.com/next" {
			t.Errorf("unexpected page elements: %v", pages)
		}
	})

	t.Run("no kinds returns everything", func(t *testing.T) {
		t.Parallel()
		if got := len(page.Elements()); got != 4 {
			t.Errorf("expected 4 elements, got %d", got)
		}
	})

	t.Run("several kinds", func(t *testing.T) {
		t.Parallel()
		if got := len(page.Elements(KindImage, KindPage)); got != 4 {
			t.Errorf("expected 4 elements, got %d", got)
		}
	})

	t.Run("element urls are distinct and ordered", func(t *testing.T) {
		t.Parallel()
		urls := page.ElementURLs(KindImage)
		want := []string{"http://example.com/a.png", "http://example.com/b.png"}
		if len(urls) != len(want) {
			t.Fatalf("expected %d urls, got %v", len(want), urls)
		}
		for i := range want {
			if urls[i] != want[i] {
				t.Errorf("url %d: expected %q, got %q", i, want[i], urls[i])
			}
		}
	})

	t.Run("nil page is empty", func(t *testing.T) {
		t.Parallel()
		var p *Page
		if p.Len() != 0 || len(p.Elements()) != 0 {
			t.Error("expected nil page to have no elements")
		}
	})
}

// TestNewPageCopiesElements tests that the page does not alias the caller's slice.
func TestNewPageCopiesElements(t *testing.T) {
	t.Parallel()

	elems := []PageElement{{Kind: KindPage, URL: "http://example.com/x"}}
	page := NewPage("http://example.com/", "", elems...)
	elems[0].URL = "http://changed/"

	if got := page.Elements()[0].URL; got != "http://example.com/x" {
		t.Errorf("page element changed through caller slice: %q", got)
	}
}

// TestElementKindString tests kind names.
func TestElementKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind ElementKind
		want string
	}{
		{KindImage, "image"},
		{KindPage, "page"},
		{ElementKind(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ElementKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

// TestImageWithPixels tests derived image construction.
func TestImageWithPixels(t *testing.T) {
	t.Parallel()

	src := &Image{
		SourceURL:   "http://example.com/a.jpg",
		Format:      "jpeg",
		Data:        []byte{1, 2, 3},
		Decoded:     image.NewRGBA(image.Rect(0, 0, 2, 2)),
		Orientation: 6,
		EXIF:        map[string]string{"Make": "Canon"},
	}
	derived := src.WithPixels(image.NewRGBA(image.Rect(0, 0, 4, 3)))

	if derived.SourceURL != src.SourceURL {
		t.Errorf("expected source url %q, got %q", src.SourceURL, derived.SourceURL)
	}
	if derived.Format != "png" {
		t.Errorf("expected png format, got %q", derived.Format)
	}
	if derived.Data != nil {
		t.Error("expected derived image to carry no encoded bytes")
	}
	if derived.Bounds().Dx() != 4 || derived.Bounds().Dy() != 3 {
		t.Errorf("unexpected bounds %v", derived.Bounds())
	}

	derived.EXIF["Make"] = "Nikon"
	if src.EXIF["Make"] != "Canon" {
		t.Error("derived image shares EXIF map with source")
	}
}

// TestCrawlReportStatus tests status strings.
func TestCrawlReportStatus(t *testing.T) {
	t.Parallel()

	r := NewCrawlReport("id", "http://example.com/", 2, []string{"grayscale"})
	if r.Status() != "complete" {
		t.Errorf("expected complete, got %q", r.Status())
	}
	r.Error = "boom"
	if r.Status() != "error" {
		t.Errorf("expected error, got %q", r.Status())
	}
	r.Cancelled = true
	if r.Status() != "cancelled" {
		t.Errorf("expected cancelled, got %q", r.Status())
	}
	if r.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}
}
