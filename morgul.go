/*
Package morgul is a library for correcting raw frames from a single
Jungfrau-style detector module into photon counts.

A run is calibrated from three dark runs, one per gain stage, and the
resulting pedestals together with a gain table drive a corrector that turns
each raw frame into counts. Corrected frames are optionally expanded to the
physical sensor geometry and written out by a pipeline of workers.
*/
package morgul

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/bodgit/morgul/calibration"
	"github.com/bodgit/morgul/correct"
	"github.com/bodgit/morgul/frame"
	"github.com/bodgit/morgul/output"
)

var errDarkFiles = errors.New("morgul: need one or three dark run files")

// Morgul corrects and writes frames
type Morgul struct {
	corrector *correct.Corrector
	writer    output.Writer
	logger    *log.Logger
	workers   int
	compact   bool
}

// Option configures a Morgul
type Option func(*Morgul)

// WithWorkers sets the number of correcting goroutines
func WithWorkers(n int) Option {
	return func(m *Morgul) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithCompact writes frames in the compact module geometry rather than
// expanding them
func WithCompact(compact bool) Option {
	return func(m *Morgul) {
		m.compact = compact
	}
}

// New returns a Morgul correcting with c and writing to w
func New(c *correct.Corrector, w output.Writer, logger *log.Logger, opts ...Option) *Morgul {
	m := &Morgul{
		corrector: c,
		writer:    w,
		logger:    logger,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func openFrames(file string, logger *log.Logger) (*os.File, *frame.Reader, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	n, partial := frame.Count(info.Size())
	if partial {
		logger.Printf("\"%s\" has %d frames and a trailing partial frame\n", file, n)
	} else {
		logger.Printf("\"%s\" has %d frames\n", file, n)
	}

	return f, frame.NewReader(f), nil
}

// EstimatePedestals estimates pedestals from either three dark run files,
// ordered low, medium then high gain, or from one file holding all three
// runs back to back.
func EstimatePedestals(logger *log.Logger, frames int, files ...string) (*calibration.Pedestals, error) {
	var sources [3]calibration.Source
	switch len(files) {
	case 1:
		f, r, err := openFrames(files[0], logger)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sources = [3]calibration.Source{r, r, r}
	case 3:
		for i, file := range files {
			f, r, err := openFrames(file, logger)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			sources[i] = r
		}
	default:
		return nil, errDarkFiles
	}

	e := calibration.Estimator{Frames: frames}
	p, err := e.Estimate(sources[0], sources[1], sources[2])
	if err != nil {
		return nil, err
	}

	for _, mode := range calibration.Modes {
		mean, std := p.Summary(mode)
		logger.Printf("%s gain pedestal mean %.2f, standard deviation %.2f\n", mode, mean, std)
	}
	logger.Printf("%d pixels masked\n", p.Masked())

	return p, nil
}

// FlatField accumulates every frame of a flat-field run after skipping skip
// frames and returns the pixels whose dispersion exceeds threshold.
func FlatField(logger *log.Logger, c *correct.Corrector, file string, skip int, threshold float64) ([]bool, error) {
	f, r, err := openFrames(file, logger)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := r.Skip(skip); err != nil {
		return nil, fmt.Errorf("morgul: skipping flat field frames: %w", err)
	}

	d := correct.NewDispersion(c)
	fr := frame.New()
	for {
		err := r.ReadFrame(fr)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := d.Add(fr.Pixels); err != nil {
			return nil, err
		}
	}

	bad, err := d.Mask(threshold)
	if err != nil {
		return nil, err
	}

	n := 0
	for _, b := range bad {
		if b {
			n++
		}
	}
	logger.Printf("%d flat field frames flagged %d pixels\n", d.Frames(), n)

	return bad, nil
}
