/*
Package geometry describes the pixel layout of a single detector module and
implements the expansion from the compact readout grid to the physical one.

The module is read out as 512 by 1024 pixels exactly, split into eight 256 by
256 pixel ASICs arranged two high and four wide. The ASICs are physically
separated by a gap of two pixels; the pixels either side of a gap are twice
as wide as the others and collect the charge that lands in it. Expanding an
image reinserts the gap rows and columns, giving 514 by 1030 pixels, and
shares the charge of each double-sized pixel with the gap pixel next to it.
*/
package geometry

import "errors"

const (
	tileWidth  = 256
	tileHeight = tileWidth
	tileX      = 4
	tileY      = 2
	gap        = 2

	// NX and NY are the width and height of the compact readout grid
	NX = tileWidth * tileX
	NY = tileHeight * tileY

	// Pixels is the number of pixels in a compact image
	Pixels = NX * NY

	// ExpandedX and ExpandedY are the width and height of the physical grid
	ExpandedX = NX + gap*(tileX-1)
	ExpandedY = NY + gap*(tileY-1)

	// ExpandedPixels is the number of pixels in an expanded image
	ExpandedPixels = ExpandedX * ExpandedY

	// Sentinel marks a pixel as either masked or not physically present
	Sentinel uint32 = 0xffffffff
)

// ErrSize is returned when an image does not have the expected dimensions
var ErrSize = errors.New("geometry: image is wrong size")

// Image is a row-major image of 32-bit photon counts
type Image struct {
	Width  int
	Height int
	Pix    []uint32
}

// NewCompact returns a zeroed image the size of the readout grid
func NewCompact() *Image {
	return &Image{
		Width:  NX,
		Height: NY,
		Pix:    make([]uint32, Pixels),
	}
}

// NewExpanded returns an image the size of the physical grid with every
// pixel set to Sentinel
func NewExpanded() *Image {
	m := &Image{
		Width:  ExpandedX,
		Height: ExpandedY,
		Pix:    make([]uint32, ExpandedPixels),
	}
	m.Fill(Sentinel)
	return m
}

// At returns the pixel at column x, row y
func (m *Image) At(x, y int) uint32 {
	return m.Pix[y*m.Width+x]
}

// Set sets the pixel at column x, row y
func (m *Image) Set(x, y int, v uint32) {
	m.Pix[y*m.Width+x] = v
}

// Fill sets every pixel to v
func (m *Image) Fill(v uint32) {
	for i := range m.Pix {
		m.Pix[i] = v
	}
}

// IsCompact reports whether m has the dimensions of the readout grid
func (m *Image) IsCompact() bool {
	return m.Width == NX && m.Height == NY && len(m.Pix) == Pixels
}

// IsExpanded reports whether m has the dimensions of the physical grid
func (m *Image) IsExpanded() bool {
	return m.Width == ExpandedX && m.Height == ExpandedY && len(m.Pix) == ExpandedPixels
}
