/*
Package output writes corrected images to disk.

Images are written one file per frame, named with a prefix and the zero-padded
frame index, either as raw little endian 32-bit values in row-major order or as
a single-HDU FITS file.
*/
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bodgit/morgul/geometry"
)

// Format is an on-disk image format
type Format int

const (
	// Raw is headerless little endian uint32 pixels
	Raw Format = iota
	// FITS is a 32-bit FITS image
	FITS
)

// Extension returns the filename extension used for f
func (f Format) Extension() string {
	switch f {
	case FITS:
		return "fits"
	default:
		return "raw"
	}
}

func (f Format) String() string {
	return f.Extension()
}

// ParseFormat returns the Format with the given name
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "raw":
		return Raw, nil
	case "fits":
		return FITS, nil
	default:
		return Raw, errors.New("output: unknown format " + s)
	}
}

// Writer stores the image for frame index and returns where it was written.
// Implementations must be safe for concurrent use.
type Writer interface {
	Write(index int, m *geometry.Image) (string, error)
}

// Directory writes each frame to its own file in Root
type Directory struct {
	Root   string
	Prefix string
	Format Format

	// Energy, if set, is recorded in FITS headers
	Energy float64
}

// Filename returns the filename used for frame index
func (d *Directory) Filename(index int) string {
	return filepath.Join(d.Root, fmt.Sprintf("%s%05d.%s", d.Prefix, index, d.Format.Extension()))
}

// Write implements Writer
func (d *Directory) Write(index int, m *geometry.Image) (string, error) {
	if err := os.MkdirAll(d.Root, 0777); err != nil {
		return "", err
	}

	fn := d.Filename(index)
	f, err := os.Create(fn)
	if err != nil {
		return "", err
	}
	defer f.Close()

	switch d.Format {
	case FITS:
		err = EncodeFITS(f, m, Cards(index, d.Energy)...)
	default:
		err = EncodeRaw(f, m)
	}
	if err != nil {
		return "", err
	}

	return fn, f.Close()
}
