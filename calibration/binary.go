package calibration

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	"github.com/bodgit/morgul/geometry"
)

const version = 1

var magic = [4]byte{'M', 'R', 'G', 'L'}

type header struct {
	Magic   [4]byte
	Version uint32
	Frames  uint32
	Pixels  uint32
}

// MarshalBinary encodes the pedestals and mask into binary form and returns
// the result
func (p *Pedestals) MarshalBinary() ([]byte, error) {
	if len(p.Mask) != geometry.Pixels {
		return nil, errSize
	}
	for _, m := range Modes {
		if err := checkSize(p.Maps[m]); err != nil {
			return nil, err
		}
	}

	b := new(bytes.Buffer)
	b.Grow(binary.Size(header{}) + len(Modes)*geometry.Pixels*8 + geometry.Pixels)

	h := header{
		Magic:   magic,
		Version: version,
		Frames:  uint32(p.Frames),
		Pixels:  geometry.Pixels,
	}
	if err := binary.Write(b, binary.LittleEndian, &h); err != nil {
		return nil, err
	}

	// Write out the maps in table order
	var tmp [8]byte
	for _, m := range Modes {
		for _, v := range p.Maps[m] {
			binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
			b.Write(tmp[:])
		}
	}

	// Write out the mask, one byte per pixel
	for _, ok := range p.Mask {
		if ok {
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
	}

	return b.Bytes(), nil
}

// UnmarshalBinary decodes the pedestals and mask from binary form
func (p *Pedestals) UnmarshalBinary(b []byte) error {
	r := bytes.NewReader(b)

	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return ErrInsufficientData
	}
	if h.Magic != magic {
		return errors.New("calibration: bad magic")
	}
	if h.Version != version {
		return errors.New("calibration: unsupported version")
	}
	if h.Pixels != geometry.Pixels {
		return errSize
	}

	b = b[binary.Size(h):]
	if len(b) != len(Modes)*geometry.Pixels*8+geometry.Pixels {
		return ErrInsufficientData
	}

	p.Frames = int(h.Frames)
	for _, m := range Modes {
		p.Maps[m] = make([]float64, geometry.Pixels)
		for i := range p.Maps[m] {
			p.Maps[m][i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i<<3:]))
		}
		b = b[geometry.Pixels*8:]
	}

	p.Mask = make([]bool, geometry.Pixels)
	for i, v := range b {
		p.Mask[i] = v != 0
	}

	return nil
}
