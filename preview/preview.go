/*
Package preview renders corrected images as small greyscale quick-look files.

Counts are scaled linearly to the brightest pixel and reduced to a palette of
at most 256 greys. Masked and gap pixels are drawn black, as are counts with the
top bit set, which are negative counts that wrapped around.
*/
package preview

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/bodgit/morgul/geometry"
	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/tiff"
)

const (
	maxColors = 256
	negative  = 1 << 31
)

// Format is a quick-look image format
type Format int

const (
	// PNG is the default format
	PNG Format = iota
	// TIFF is a deflate-compressed TIFF
	TIFF
)

// ParseFormat returns the Format with the given name
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "png":
		return PNG, nil
	case "tiff", "tif":
		return TIFF, nil
	default:
		return PNG, errors.New("preview: unknown format " + s)
	}
}

func visible(v uint32) bool {
	return v != geometry.Sentinel && v < negative
}

// Render returns m as a paletted greyscale image. If scale is zero the
// brightest pixel is used as full scale.
func Render(m *geometry.Image, scale uint32) *image.Paletted {
	if scale == 0 {
		for _, v := range m.Pix {
			if visible(v) && v > scale {
				scale = v
			}
		}
	}

	b := image.Rect(0, 0, m.Width, m.Height)
	grey := image.NewGray16(b)
	if scale > 0 {
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				v := m.At(x, y)
				if !visible(v) {
					continue
				}
				if v > scale {
					v = scale
				}
				grey.SetGray16(x, y, color.Gray16{Y: uint16(uint64(v) * 0xffff / uint64(scale))})
			}
		}
	}

	q := quantize.MedianCutQuantizer{}
	pm := image.NewPaletted(b, q.Quantize(make(color.Palette, 0, maxColors), grey))
	draw.Draw(pm, b, grey, b.Min, draw.Src)

	return pm
}

// Encode writes a quick-look rendering of m to w
func Encode(w io.Writer, m *geometry.Image, f Format) error {
	pm := Render(m, 0)
	switch f {
	case TIFF:
		return tiff.Encode(w, pm, &tiff.Options{Compression: tiff.Deflate})
	default:
		return png.Encode(w, pm)
	}
}
