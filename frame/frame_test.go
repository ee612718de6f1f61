package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/bodgit/morgul/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(seed uint16) *Frame {
	f := New()
	for i := range f.Header {
		f.Header[i] = byte(i) ^ byte(seed)
	}
	for i := range f.Pixels {
		f.Pixels[i] = uint16(i) + seed
	}
	return f
}

func TestModeAndADC(t *testing.T) {
	tables := []struct {
		sample uint16
		mode   uint16
		adc    uint16
	}{
		{0x0000, 0, 0},
		{0x3fff, 0, 0x3fff},
		{0x4001, 1, 1},
		{0x8002, 2, 2},
		{0xc123, 3, 0x0123},
	}

	for _, table := range tables {
		assert.Equal(t, table.mode, Mode(table.sample))
		assert.Equal(t, table.adc, ADC(table.sample))
	}
}

func TestCount(t *testing.T) {
	n, partial := Count(3 * Size)
	assert.Equal(t, 3, n)
	assert.False(t, partial)

	n, partial = Count(3*Size + 10)
	assert.Equal(t, 3, n)
	assert.True(t, partial)
}

func TestRoundTrip(t *testing.T) {
	b := new(bytes.Buffer)
	for i := uint16(0); i < 3; i++ {
		require.Nil(t, Encode(b, testFrame(i)))
	}
	assert.Equal(t, 3*Size, b.Len())

	r := NewReader(b)
	for i := uint16(0); i < 3; i++ {
		f, err := r.Next()
		require.Nil(t, err)
		assert.Equal(t, testFrame(i), f)
	}

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestLittleEndian(t *testing.T) {
	b := make([]byte, Size)
	b[HeaderSize] = 0x34
	b[HeaderSize+1] = 0xc2

	f, err := Decode(bytes.NewReader(b))
	require.Nil(t, err)
	assert.Equal(t, uint16(0xc234), f.Pixels[0])
	assert.Equal(t, uint16(3), Mode(f.Pixels[0]))
}

func TestTruncated(t *testing.T) {
	b := new(bytes.Buffer)
	require.Nil(t, Encode(b, testFrame(0)))
	require.Nil(t, Encode(b, testFrame(1)))
	b.Truncate(Size + Size/2)

	r := NewReader(b)
	_, err := r.Next()
	require.Nil(t, err)

	_, err = r.Next()
	assert.Equal(t, ErrTruncated, err)
}

func TestWrongSize(t *testing.T) {
	f := &Frame{Pixels: make([]uint16, 10)}
	assert.NotNil(t, Encode(io.Discard, f))
	assert.NotNil(t, NewReader(bytes.NewReader(make([]byte, Size))).ReadFrame(f))
}

func TestSkip(t *testing.T) {
	b := new(bytes.Buffer)
	for i := uint16(0); i < 4; i++ {
		require.Nil(t, Encode(b, testFrame(i)))
	}
	enc := b.Bytes()

	// Seekable and plain streams behave the same
	for _, src := range []io.Reader{bytes.NewReader(enc), bytes.NewBuffer(append([]byte(nil), enc...))} {
		r := NewReader(src)
		require.Nil(t, r.Skip(2))
		f, err := r.Next()
		require.Nil(t, err)
		assert.Equal(t, testFrame(2).Pixels[:16], f.Pixels[:16])
		assert.True(t, errors.Is(r.Skip(5), io.ErrUnexpectedEOF))
	}

	r := NewReader(bytes.NewReader(enc[:Size+100]))
	assert.Equal(t, ErrTruncated, r.Skip(2))
}

func TestNewIsCompact(t *testing.T) {
	assert.Len(t, New().Pixels, geometry.Pixels)
}
