package frame

import (
	"encoding/binary"
	"io"

	"github.com/bodgit/morgul/geometry"
)

// Encode writes the frame f to w in the raw stream format.
func Encode(w io.Writer, f *Frame) error {
	if len(f.Pixels) != geometry.Pixels {
		return errSize
	}

	var b [Size]byte
	copy(b[:], f.Header[:])
	for i, v := range f.Pixels {
		binary.LittleEndian.PutUint16(b[HeaderSize+i<<1:], v)
	}

	_, err := w.Write(b[:])
	return err
}
