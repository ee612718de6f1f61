package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/bodgit/morgul/geometry"
)

var errNotEnough = errors.New("output: not enough image data")

// EncodeRaw writes m to w as little endian uint32 values
func EncodeRaw(w io.Writer, m *geometry.Image) error {
	bw := bufio.NewWriter(w)
	var tmp [4]byte
	for _, v := range m.Pix {
		binary.LittleEndian.PutUint32(tmp[:], v)
		if _, err := bw.Write(tmp[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeRaw reads an image of the given dimensions written by EncodeRaw
func DecodeRaw(r io.Reader, width, height int) (*geometry.Image, error) {
	b := make([]byte, width*height*4)
	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errNotEnough
		}
		return nil, err
	}

	m := &geometry.Image{
		Width:  width,
		Height: height,
		Pix:    make([]uint32, width*height),
	}
	for i := range m.Pix {
		m.Pix[i] = binary.LittleEndian.Uint32(b[i<<2:])
	}
	return m, nil
}
