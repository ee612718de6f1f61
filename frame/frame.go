/*
Package frame implements a decoder and encoder for the raw frame stream
written by the detector receiver.

Each frame is a 48 byte header, which is not interpreted, followed by 512 by
1024 little endian 16-bit samples in row-major order. The top two bits of each
sample hold the gain mode the pixel was read out in and the remaining 14 bits
hold the ADC value. There is no framing beyond that so a file is simply the
concatenation of whole frames.
*/
package frame

import "github.com/bodgit/morgul/geometry"

const (
	// HeaderSize is the size in bytes of the opaque frame header
	HeaderSize = 48

	// Size is the size in bytes of one encoded frame
	Size = HeaderSize + geometry.Pixels*2

	// ModeBits selects the gain mode bits of a sample
	ModeBits uint16 = 0xc000

	// ADCBits selects the ADC value bits of a sample
	ADCBits uint16 = 0x3fff

	modeShift = 14
)

// Frame is one decoded exposure
type Frame struct {
	Header [HeaderSize]byte
	Pixels []uint16
}

// New returns a frame with room for a full set of samples
func New() *Frame {
	return &Frame{
		Pixels: make([]uint16, geometry.Pixels),
	}
}

// Mode returns the gain mode bits of a sample, 0 to 3
func Mode(sample uint16) uint16 {
	return sample >> modeShift
}

// ADC returns the ADC value of a sample
func ADC(sample uint16) uint16 {
	return sample & ADCBits
}

// Count returns the number of whole frames in a stream of size bytes, and
// whether there are trailing bytes that do not make up a whole frame.
func Count(size int64) (int, bool) {
	return int(size / Size), size%Size != 0
}
