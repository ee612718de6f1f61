/*
Package calibration builds the per-pixel calibration of a detector module.

Calibration is made up of gain tables, measured once per module and supplied
as a file, and pedestals, the baseline ADC level of each pixel in each of the
three gain modes, estimated from runs of dark frames. Pixels that switch gain
during the high gain dark run are masked and excluded from all corrected
data. Once built, a Calibration is never modified and may be shared between
any number of goroutines.
*/
package calibration

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"

	"github.com/bodgit/morgul/frame"
	"github.com/bodgit/morgul/geometry"
)

// ErrInsufficientData is returned when a gain table or dark run is shorter
// than required
var ErrInsufficientData = errors.New("calibration: insufficient data")

// Mode is a gain mode, also used as the index of gain and pedestal maps
type Mode int

// Gain modes in the order they are stored in a gain table
const (
	High Mode = iota
	Medium
	Low
	numModes
)

// Modes lists every gain mode in table order
var Modes = [numModes]Mode{High, Medium, Low}

func (m Mode) String() string {
	switch m {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

// ModeOf returns the gain mode a sample was read out in. The unused mode bits
// value of 2 is treated as high gain.
func ModeOf(sample uint16) Mode {
	switch frame.Mode(sample) {
	case 3:
		return Low
	case 1:
		return Medium
	default:
		return High
	}
}

// Gains holds one map of ADU per keV for each gain mode
type Gains [numModes][]float64

// ReadGains reads a gain table from r. The table is three consecutive maps of
// little endian float64 values for the high, medium and low gain modes.
func ReadGains(r io.Reader) (*Gains, error) {
	g := new(Gains)
	b := make([]byte, geometry.Pixels*8)
	for _, m := range Modes {
		if _, err := io.ReadFull(r, b); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, ErrInsufficientData
			}
			return nil, err
		}
		g[m] = make([]float64, geometry.Pixels)
		for i := range g[m] {
			g[m][i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i<<3:]))
		}
	}
	return g, nil
}

// ReadGainsFile reads a gain table from the named file
func ReadGainsFile(file string) (*Gains, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadGains(f)
}

// WriteGains writes g to w in the same format read by ReadGains
func WriteGains(w io.Writer, g *Gains) error {
	b := make([]byte, geometry.Pixels*8)
	for _, m := range Modes {
		if len(g[m]) != geometry.Pixels {
			return errSize
		}
		for i, v := range g[m] {
			binary.LittleEndian.PutUint64(b[i<<3:], math.Float64bits(v))
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}
