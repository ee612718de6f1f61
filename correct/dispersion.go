package correct

import (
	"errors"

	"github.com/bodgit/morgul/geometry"
	"gonum.org/v1/gonum/floats"
)

// DefaultThreshold is the dispersion above which a pixel is considered bad
const DefaultThreshold = 3.0

var errNoFrames = errors.New("correct: no frames accumulated")

// Dispersion accumulates corrected counts over a flat-field run and flags
// pixels whose variance is too large compared to their mean, which for
// photon counting pixels should be roughly one.
type Dispersion struct {
	c      *Corrector
	n      int
	sum    []float64
	square []float64
	tmp    []float64
}

// NewDispersion returns an empty accumulator correcting frames with c
func NewDispersion(c *Corrector) *Dispersion {
	return &Dispersion{
		c:      c,
		sum:    make([]float64, geometry.Pixels),
		square: make([]float64, geometry.Pixels),
		tmp:    make([]float64, geometry.Pixels),
	}
}

// Add corrects the raw samples of one frame and accumulates them
func (d *Dispersion) Add(raw []uint16) error {
	if len(raw) != geometry.Pixels {
		return ErrSize
	}

	for i, v := range raw {
		if d.c.cal.Usable(i) {
			d.tmp[i] = d.c.value(i, v)
		} else {
			d.tmp[i] = 0
		}
	}
	floats.Add(d.sum, d.tmp)
	floats.Mul(d.tmp, d.tmp)
	floats.Add(d.square, d.tmp)
	d.n++

	return nil
}

// Frames returns the number of frames accumulated
func (d *Dispersion) Frames() int {
	return d.n
}

// Mask returns true for every pixel whose variance divided by its mean
// exceeds threshold. A zero mean is treated as one.
func (d *Dispersion) Mask(threshold float64) ([]bool, error) {
	if d.n == 0 {
		return nil, errNoFrames
	}

	mean := make([]float64, geometry.Pixels)
	floats.ScaleTo(mean, 1/float64(d.n), d.sum)

	bad := make([]bool, geometry.Pixels)
	for i, mu := range mean {
		variance := d.square[i]/float64(d.n) - mu*mu
		if mu == 0 {
			mu = 1
		}
		bad[i] = variance/mu > threshold
	}

	return bad, nil
}
