package calibration

import (
	"errors"

	"github.com/bodgit/morgul/geometry"
)

var errSize = errors.New("calibration: map is wrong size")

// Calibration is the complete, read-only calibration of a module
type Calibration struct {
	gains     Gains
	pedestals Pedestals
}

func checkSize(s []float64) error {
	if len(s) != geometry.Pixels {
		return errSize
	}
	return nil
}

// New returns a Calibration built from copies of g and p, so neither may be
// used to modify it afterwards.
func New(g *Gains, p *Pedestals) (*Calibration, error) {
	if len(p.Mask) != geometry.Pixels {
		return nil, errSize
	}

	c := &Calibration{
		pedestals: Pedestals{
			Frames: p.Frames,
			Mask:   append([]bool(nil), p.Mask...),
		},
	}
	for _, m := range Modes {
		if err := checkSize(g[m]); err != nil {
			return nil, err
		}
		if err := checkSize(p.Maps[m]); err != nil {
			return nil, err
		}
		c.gains[m] = append([]float64(nil), g[m]...)
		c.pedestals.Maps[m] = append([]float64(nil), p.Maps[m]...)
	}

	return c, nil
}

// Gain returns the gain of pixel i in mode m
func (c *Calibration) Gain(m Mode, i int) float64 {
	return c.gains[m][i]
}

// Pedestal returns the baseline of pixel i in mode m
func (c *Calibration) Pedestal(m Mode, i int) float64 {
	return c.pedestals.Maps[m][i]
}

// Usable reports whether pixel i is not masked
func (c *Calibration) Usable(i int) bool {
	return c.pedestals.Mask[i]
}

// Masked returns the number of masked pixels
func (c *Calibration) Masked() int {
	return c.pedestals.Masked()
}

// Pedestals returns a copy of the pedestals and mask
func (c *Calibration) Pedestals() *Pedestals {
	p := &Pedestals{
		Frames: c.pedestals.Frames,
		Mask:   append([]bool(nil), c.pedestals.Mask...),
	}
	for _, m := range Modes {
		p.Maps[m] = append([]float64(nil), c.pedestals.Maps[m]...)
	}
	return p
}

// WithMask returns a new Calibration which additionally masks every pixel
// where bad is true. The receiver is unchanged.
func (c *Calibration) WithMask(bad []bool) (*Calibration, error) {
	if len(bad) != geometry.Pixels {
		return nil, errSize
	}

	p := c.Pedestals()
	for i, b := range bad {
		if b {
			p.Mask[i] = false
		}
	}

	return New(&c.gains, p)
}
