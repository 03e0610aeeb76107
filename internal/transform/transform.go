package transform

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/imgcrawl/internal/model"
)

// Transform is a named function from one image to a new image.
type Transform interface {
	// Name returns the identifier used in configuration, claims and cache paths.
	Name() string

	// Apply returns a new transformed image. The input is never modified.
	Apply(ctx context.Context, img *model.Image) (*model.Image, error)
}

// Func adapts a pixel function to the Transform interface.
// The function receives a private NRGBA copy of the source pixels and the
// source image for metadata, and returns the result pixels.
type Func struct {
	name string
	fn   func(pixels *image.NRGBA, src *model.Image) image.Image
}

// NewFunc creates a Transform from a pixel function.
func NewFunc(name string, fn func(pixels *image.NRGBA, src *model.Image) image.Image) *Func {
	return &Func{name: name, fn: fn}
}

// Name returns the transform name.
func (f *Func) Name() string {
	return f.name
}

// Apply runs the pixel function on a copy of the image.
func (f *Func) Apply(ctx context.Context, img *model.Image) (*model.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || img.Decoded == nil {
		return nil, ErrEmptyImage
	}
	bounds := img.Decoded.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyImage
	}
	return img.WithPixels(f.fn(toNRGBA(img.Decoded), img)), nil
}

// toNRGBA copies src into a new NRGBA image anchored at the origin.
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// constructors holds the built-in catalog.
var constructors = map[string]func() Transform{
	"grayscale": func() Transform { return NewFunc("grayscale", grayscale) },
	"sepia":     func() Transform { return NewFunc("sepia", sepia) },
	"tint":      func() Transform { return NewTint(DefaultTintRed, DefaultTintGreen, DefaultTintBlue) },
	"mirror":    func() Transform { return NewFunc("mirror", mirror) },
	"orient":    func() Transform { return NewFunc("orient", orient) },
}

// Names returns the registered transform names in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the built-in transform with the given name.
// Names are matched case-insensitively.
func Lookup(name string) (Transform, error) {
	ctor, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownTransform, name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Parse resolves a list of names to transforms, dropping duplicates while
// keeping the first occurrence order.
func Parse(names []string) ([]Transform, error) {
	result := make([]Transform, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		t, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if seen[t.Name()] {
			continue
		}
		seen[t.Name()] = true
		result = append(result, t)
	}
	return result, nil
}

// TransformNames returns the names of the given transforms.
func TransformNames(ts []Transform) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name()
	}
	return names
}

// DisplayName returns a title-cased name for reports and listings.
func DisplayName(name string) string {
	return cases.Title(language.English).String(name)
}

// Description returns a one-line description of a built-in transform.
func Description(name string) string {
	switch name {
	case "grayscale":
		return "Convert to shades of gray using luma weights"
	case "sepia":
		return "Apply a warm brown sepia tone"
	case "tint":
		return "Blend colors towards white (red tint by default)"
	case "mirror":
		return "Flip horizontally"
	case "orient":
		return "Rotate/flip upright according to the EXIF Orientation tag"
	default:
		return ""
	}
}
