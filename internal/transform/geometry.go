package transform

import (
	"image"

	"github.com/nao1215/imgcrawl/internal/model"
)

func mirror(p *image.NRGBA, _ *model.Image) image.Image {
	return remap(p, 2)
}

// orient applies the EXIF orientation so the result displays upright.
// Images without an orientation tag (or tagged 1) are returned unchanged.
func orient(p *image.NRGBA, src *model.Image) image.Image {
	if src.Orientation < 2 || src.Orientation > 8 {
		return p
	}
	return remap(p, src.Orientation)
}

// remap moves every source pixel to its destination for an EXIF
// orientation value:
//
//	2 flip horizontal   3 rotate 180    4 flip vertical   5 transpose
//	6 rotate 90 cw      7 transverse    8 rotate 90 ccw
func remap(src *image.NRGBA, orientation int) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))

	for sy := 0; sy < h; sy++ {
		for sx := 0; sx < w; sx++ {
			var dx, dy int
			switch orientation {
			case 2:
				dx, dy = w-1-sx, sy
			case 3:
				dx, dy = w-1-sx, h-1-sy
			case 4:
				dx, dy = sx, h-1-sy
			case 5:
				dx, dy = sy, sx
			case 6:
				dx, dy = h-1-sy, sx
			case 7:
				dx, dy = h-1-sy, w-1-sx
			case 8:
				dx, dy = sy, w-1-sx
			default:
				dx, dy = sx, sy
			}
			si := sy*src.Stride + sx*4
			di := dy*dst.Stride + dx*4
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}
