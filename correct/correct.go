/*
Package correct converts raw detector frames into photon counts.

Each pixel is corrected with the pedestal and gain of the mode it was read out
in:

	counts = (ADC - pedestal) / (gain * energy)

truncated towards zero. Masked pixels are always set to geometry.Sentinel.
*/
package correct

import (
	"errors"
	"math"

	"github.com/bodgit/morgul/calibration"
	"github.com/bodgit/morgul/frame"
	"github.com/bodgit/morgul/geometry"
)

var (
	// ErrInvalidEnergy is returned for a photon energy that is not a
	// positive number of keV
	ErrInvalidEnergy = errors.New("correct: photon energy must be positive")

	// ErrSize is returned when a frame or image has the wrong number of pixels
	ErrSize = errors.New("correct: wrong number of pixels")
)

// Policy decides how a count outside the range of a uint32 is stored
type Policy int

const (
	// Wrap truncates towards zero then keeps the low 32 bits, so small
	// negative counts wrap around to large values
	Wrap Policy = iota

	// Saturate clamps counts to the range 0 to geometry.Sentinel-1
	Saturate
)

func (p Policy) String() string {
	switch p {
	case Wrap:
		return "wrap"
	case Saturate:
		return "saturate"
	default:
		return "unknown"
	}
}

// ParsePolicy returns the Policy with the given name
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "wrap":
		return Wrap, nil
	case "saturate":
		return Saturate, nil
	default:
		return Wrap, errors.New("correct: unknown overflow policy " + s)
	}
}

// Option configures a Corrector
type Option func(*Corrector)

// WithPolicy sets the overflow policy, the default is Wrap
func WithPolicy(p Policy) Option {
	return func(c *Corrector) {
		c.policy = p
	}
}

// Corrector applies a calibration to raw frames. It holds no per-frame state
// so any number of frames may be corrected concurrently.
type Corrector struct {
	cal    *calibration.Calibration
	energy float64
	policy Policy
}

// New returns a Corrector for photons of the given energy in keV
func New(cal *calibration.Calibration, energy float64, opts ...Option) (*Corrector, error) {
	if !(energy > 0) || math.IsInf(energy, 0) {
		return nil, ErrInvalidEnergy
	}

	c := &Corrector{
		cal:    cal,
		energy: energy,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Calibration returns the calibration used by c
func (c *Corrector) Calibration() *calibration.Calibration {
	return c.cal
}

// Energy returns the photon energy in keV
func (c *Corrector) Energy() float64 {
	return c.energy
}

// value returns the unrounded count for sample v of pixel i
func (c *Corrector) value(i int, v uint16) float64 {
	if !c.cal.Usable(i) {
		v = 0
	}
	m := calibration.ModeOf(v)
	return (float64(v&frame.ADCBits) - c.cal.Pedestal(m, i)) / (c.cal.Gain(m, i) * c.energy)
}

func (c *Corrector) store(x float64) uint32 {
	var u uint32
	switch c.policy {
	case Saturate:
		switch {
		case math.IsNaN(x) || x <= 0:
			u = 0
		case x >= float64(geometry.Sentinel-1):
			u = geometry.Sentinel - 1
		default:
			u = uint32(x)
		}
	default:
		u = uint32(int64(math.Trunc(x)))
	}

	// Only masked pixels may hold the sentinel
	if u == geometry.Sentinel {
		u--
	}
	return u
}

// Correct corrects the raw samples into dst, which must be compact.
func (c *Corrector) Correct(raw []uint16, dst *geometry.Image) error {
	if len(raw) != geometry.Pixels || !dst.IsCompact() {
		return ErrSize
	}

	for i, v := range raw {
		if !c.cal.Usable(i) {
			dst.Pix[i] = geometry.Sentinel
			continue
		}
		dst.Pix[i] = c.store(c.value(i, v))
	}

	return nil
}

// CorrectFrame corrects f into a new compact image
func (c *Corrector) CorrectFrame(f *frame.Frame) (*geometry.Image, error) {
	dst := geometry.NewCompact()
	if err := c.Correct(f.Pixels, dst); err != nil {
		return nil, err
	}
	return dst, nil
}
