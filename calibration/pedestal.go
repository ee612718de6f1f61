package calibration

import (
	"fmt"
	"io"

	"github.com/bodgit/morgul/frame"
	"github.com/bodgit/morgul/geometry"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultFrames is the number of frames in each dark run
const DefaultFrames = 1000

// Source is a stream of raw frames, such as a *frame.Reader
type Source interface {
	ReadFrame(*frame.Frame) error
}

// Pedestals holds the per-pixel baseline for each gain mode and the mask of
// usable pixels derived from the dark runs.
type Pedestals struct {
	// Frames is the number of frames each dark run was averaged over
	Frames int

	// Maps holds one baseline map per gain mode, indexed by Mode
	Maps [numModes][]float64

	// Mask is true for pixels that can be used
	Mask []bool
}

func newPedestals(frames int) *Pedestals {
	p := &Pedestals{
		Frames: frames,
		Mask:   make([]bool, geometry.Pixels),
	}
	for _, m := range Modes {
		p.Maps[m] = make([]float64, geometry.Pixels)
	}
	for i := range p.Mask {
		p.Mask[i] = true
	}
	return p
}

// Masked returns the number of masked pixels
func (p *Pedestals) Masked() int {
	n := 0
	for _, ok := range p.Mask {
		if !ok {
			n++
		}
	}
	return n
}

// Summary returns the mean and standard deviation of the baseline for gain
// mode m, ignoring masked pixels
func (p *Pedestals) Summary(m Mode) (float64, float64) {
	weights := make([]float64, len(p.Mask))
	for i, ok := range p.Mask {
		if ok {
			weights[i] = 1
		}
	}
	if floats.Sum(weights) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(p.Maps[m], weights)
}

// Estimator derives pedestals from three dark runs. The zero value averages
// each run over DefaultFrames frames.
type Estimator struct {
	Frames int
}

func (e *Estimator) frames() int {
	if e.Frames > 0 {
		return e.Frames
	}
	return DefaultFrames
}

func (e *Estimator) read(src Source, f *frame.Frame, m Mode, i int) error {
	if err := src.ReadFrame(f); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%s gain run has %d of %d frames: %w", m, i, e.frames(), ErrInsufficientData)
		}
		return fmt.Errorf("%s gain run frame %d: %w", m, i, err)
	}
	return nil
}

// forced averages the ADC values of a run where the gain was forced by the
// receiver so the mode bits can be ignored
func (e *Estimator) forced(src Source, f *frame.Frame, m Mode, acc []float64) error {
	adc := make([]float64, geometry.Pixels)
	for i := 0; i < e.frames(); i++ {
		if err := e.read(src, f, m, i); err != nil {
			return err
		}
		for p, v := range f.Pixels {
			adc[p] = float64(v & frame.ADCBits)
		}
		floats.Add(acc, adc)
	}
	return nil
}

// dynamic averages the high gain run. Any pixel seen switching out of high
// gain is masked and its sum so far thrown away; the divisor stays the full
// number of frames.
func (e *Estimator) dynamic(src Source, f *frame.Frame, acc []float64, mask []bool) error {
	for i := 0; i < e.frames(); i++ {
		if err := e.read(src, f, High, i); err != nil {
			return err
		}
		for p, v := range f.Pixels {
			if v&frame.ModeBits != 0 {
				mask[p] = false
				acc[p] = 0
			} else {
				acc[p] += float64(v)
			}
		}
	}
	return nil
}

// Estimate reads exactly the configured number of frames from each of the low,
// medium and high gain dark runs, in that order. The same Source may be passed
// for all three when the runs were recorded back to back.
func (e *Estimator) Estimate(low, medium, high Source) (*Pedestals, error) {
	p := newPedestals(e.frames())
	f := frame.New()

	if err := e.forced(low, f, Low, p.Maps[Low]); err != nil {
		return nil, err
	}
	if err := e.forced(medium, f, Medium, p.Maps[Medium]); err != nil {
		return nil, err
	}
	if err := e.dynamic(high, f, p.Maps[High], p.Mask); err != nil {
		return nil, err
	}

	n := float64(p.Frames)
	for _, m := range Modes {
		for i := range p.Maps[m] {
			p.Maps[m][i] /= n
		}
	}

	return p, nil
}
