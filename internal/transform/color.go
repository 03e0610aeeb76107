package transform

import (
	"image"

	"github.com/nao1215/imgcrawl/internal/model"
)

const (
	// sepiaDepth is the warm shift added to red (twice) and green.
	sepiaDepth = 20

	// DefaultTintRed is the default red blend factor of the tint transform.
	DefaultTintRed = 0.2
	// DefaultTintGreen is the default green blend factor of the tint transform.
	DefaultTintGreen = 0.0
	// DefaultTintBlue is the default blue blend factor of the tint transform.
	DefaultTintBlue = 0.0
)

// eachOpaque calls fn for the RGBA offset of every pixel that is not fully
// transparent.
func eachOpaque(p *image.NRGBA, fn func(i int)) {
	b := p.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := y * p.Stride
		for x := 0; x < b.Dx(); x++ {
			i := row + x*4
			if p.Pix[i+3] == 0 {
				continue
			}
			fn(i)
		}
	}
}

func grayscale(p *image.NRGBA, _ *model.Image) image.Image {
	eachOpaque(p, func(i int) {
		r, g, b := float64(p.Pix[i]), float64(p.Pix[i+1]), float64(p.Pix[i+2])
		gray := uint8(r*0.299 + g*0.587 + b*0.114)
		p.Pix[i], p.Pix[i+1], p.Pix[i+2] = gray, gray, gray
	})
	return p
}

func sepia(p *image.NRGBA, _ *model.Image) image.Image {
	eachOpaque(p, func(i int) {
		avg := (int(p.Pix[i]) + int(p.Pix[i+1]) + int(p.Pix[i+2])) / 3
		p.Pix[i] = clamp(avg + sepiaDepth*2)
		p.Pix[i+1] = clamp(avg + sepiaDepth)
		p.Pix[i+2] = uint8(avg)
	})
	return p
}

// Tint blends each channel towards white by a per-channel factor in [0, 1].
type Tint struct {
	*Func
	red, green, blue float64
}

// NewTint creates a tint transform. Factors are clamped to [0, 1].
func NewTint(red, green, blue float64) *Tint {
	t := &Tint{red: unit(red), green: unit(green), blue: unit(blue)}
	t.Func = NewFunc("tint", func(p *image.NRGBA, _ *model.Image) image.Image {
		eachOpaque(p, func(i int) {
			p.Pix[i] = tintChannel(p.Pix[i], t.red)
			p.Pix[i+1] = tintChannel(p.Pix[i+1], t.green)
			p.Pix[i+2] = tintChannel(p.Pix[i+2], t.blue)
		})
		return p
	})
	return t
}

func tintChannel(c uint8, factor float64) uint8 {
	v := float64(c)
	return clamp(int(v + (255-v)*factor))
}

func clamp(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}

func unit(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
