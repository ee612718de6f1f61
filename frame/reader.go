package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bodgit/morgul/geometry"
)

var (
	// ErrTruncated is returned when the stream ends part way through a frame
	ErrTruncated = errors.New("frame: truncated frame")

	errSize = errors.New("frame: wrong number of samples")
)

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.ErrUnexpectedEOF {
		err = ErrTruncated
	}
	return err
}

// Reader decodes consecutive frames from a stream. It is not safe for
// concurrent use.
type Reader struct {
	r io.Reader

	// Enough to hold one encoded frame
	tmp [Size]byte
}

// NewReader returns a Reader reading frames from r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame decodes the next frame into f. It returns io.EOF if the stream
// ends cleanly before the frame and ErrTruncated if it ends part way through.
func (r *Reader) ReadFrame(f *Frame) error {
	if len(f.Pixels) != geometry.Pixels {
		return errSize
	}

	if err := readFull(r.r, r.tmp[:]); err != nil {
		return err
	}

	copy(f.Header[:], r.tmp[:HeaderSize])
	b := r.tmp[HeaderSize:]
	for i := range f.Pixels {
		f.Pixels[i] = binary.LittleEndian.Uint16(b[i<<1:])
	}

	return nil
}

// Next decodes the next frame into a newly allocated Frame
func (r *Reader) Next() (*Frame, error) {
	f := New()
	if err := r.ReadFrame(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Skip discards the next n frames without decoding them. If the stream holds
// fewer than n frames it is left at the end and an error is returned.
func (r *Reader) Skip(n int) error {
	if n <= 0 {
		return nil
	}

	want := int64(n) * Size

	var got int64
	var err error
	if s, ok := r.r.(io.Seeker); ok {
		got, err = seekForward(s, want)
	} else {
		got, err = io.CopyN(io.Discard, r.r, want)
		if err == io.EOF {
			err = nil
		}
	}
	if err != nil {
		return err
	}

	if got < want {
		if got%Size != 0 {
			return ErrTruncated
		}
		return fmt.Errorf("frame: skipped %d of %d frames: %w", got/Size, n, io.ErrUnexpectedEOF)
	}

	return nil
}

func seekForward(s io.Seeker, want int64) (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if end-cur < want {
		want = end - cur
	}
	if _, err := s.Seek(cur+want, io.SeekStart); err != nil {
		return 0, err
	}
	return want, nil
}

// Decode reads a single frame from r
func Decode(r io.Reader) (*Frame, error) {
	return NewReader(r).Next()
}
