package model

import (
	"image"
	"maps"
)

// Image is decoded image data identified by its source URL.
//
// An Image is never mutated after construction. Transforms produce a new
// Image through WithPixels so that the same source can be handed to several
// transforms concurrently.
type Image struct {
	// SourceURL identifies the image for caching and claim purposes.
	SourceURL string

	// Format is the decoder name reported by image.Decode ("jpeg", "png", "gif").
	// Derived images are always "png".
	Format string

	// Data holds the encoded bytes exactly as downloaded. Nil for derived images.
	Data []byte

	// Decoded is the pixel data.
	Decoded image.Image

	// Orientation is the EXIF orientation tag (1-8), or 0 when absent.
	Orientation int

	// EXIF holds a flattened subset of EXIF tags (tag name -> formatted value).
	EXIF map[string]string
}

// Bounds returns the pixel bounds, or an empty rectangle when nothing is decoded.
func (img *Image) Bounds() image.Rectangle {
	if img == nil || img.Decoded == nil {
		return image.Rectangle{}
	}
	return img.Decoded.Bounds()
}

// WithPixels returns a derived image that keeps the source identity and
// metadata but carries new pixel data.
func (img *Image) WithPixels(pixels image.Image) *Image {
	return &Image{
		SourceURL:   img.SourceURL,
		Format:      "png",
		Decoded:     pixels,
		Orientation: img.Orientation,
		EXIF:        maps.Clone(img.EXIF),
	}
}
