package morgul

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/bodgit/morgul/frame"
	"github.com/bodgit/morgul/geometry"
)

var errCancelled = errors.New("morgul: processing cancelled")

// Input is a raw data file and the number of frames to skip at its start
type Input struct {
	Path string
	Skip int
}

type job struct {
	index int
	frame *frame.Frame
}

func (m *Morgul) readFrames(ctx context.Context, inputs []Input) (<-chan job, <-chan error, error) {
	out := make(chan job)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)

		offset := 0
		for _, in := range inputs {
			n, err := m.readFile(ctx, in, offset, out)
			if err != nil {
				errc <- fmt.Errorf("morgul: %s: %w", in.Path, err)
				return
			}
			m.logger.Printf("Read %d frames from \"%s\"\n", n, in.Path)
			offset += n
		}
	}()
	return out, errc, nil
}

func (m *Morgul) readFile(ctx context.Context, in Input, offset int, out chan<- job) (int, error) {
	f, r, err := openFrames(in.Path, m.logger)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := r.Skip(in.Skip); err != nil {
		return 0, err
	}
	if in.Skip > 0 {
		m.logger.Printf("Skipped %d frames of \"%s\"\n", in.Skip, in.Path)
	}

	for i := 0; ; i++ {
		fr, err := r.Next()
		if err == io.EOF {
			return i, nil
		}
		if err != nil {
			return i, err
		}

		select {
		case out <- job{index: offset + i, frame: fr}:
		case <-ctx.Done():
			return i, errCancelled
		}
	}
}

func (m *Morgul) frameWorker(ctx context.Context, in <-chan job, written *int64) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)

		var expanded *geometry.Image
		if !m.compact {
			expanded = geometry.NewExpanded()
		}

		for j := range in {
			if ctx.Err() != nil {
				continue
			}

			img, err := m.corrector.CorrectFrame(j.frame)
			if err != nil {
				errc <- fmt.Errorf("morgul: frame %d: %w", j.index, err)
				return
			}

			if !m.compact {
				if err := geometry.ExpandInto(expanded, img); err != nil {
					errc <- fmt.Errorf("morgul: frame %d: %w", j.index, err)
					return
				}
				img = expanded
			}

			file, err := m.writer.Write(j.index, img)
			if err != nil {
				errc <- fmt.Errorf("morgul: frame %d: %w", j.index, err)
				return
			}
			atomic.AddInt64(written, 1)
			m.logger.Printf("Wrote frame %d to \"%s\"\n", j.index, file)
		}
	}()
	return errc, nil
}

func waitForPipeline(cancel context.CancelFunc, errs ...<-chan error) error {
	var first error
	for err := range mergeErrors(errs...) {
		if err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Process corrects every frame of inputs in order and writes each one. Frame
// indices continue from one input to the next after skipped frames are
// dropped. It returns the number of frames written, which on error is the
// number written before processing stopped.
func (m *Morgul) Process(ctx context.Context, inputs []Input) (int, error) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	var errcList []<-chan error

	jobs, errc, err := m.readFrames(ctx, inputs)
	if err != nil {
		return 0, err
	}
	errcList = append(errcList, errc)

	var written int64
	for i := 0; i < m.workers; i++ {
		errc, err := m.frameWorker(ctx, jobs, &written)
		if err != nil {
			return 0, err
		}
		errcList = append(errcList, errc)
	}

	err = waitForPipeline(cancelFunc, errcList...)
	if err == nil {
		err = ctx.Err()
	}
	n := int(atomic.LoadInt64(&written))
	if err != nil {
		return n, err
	}

	m.logger.Printf("Wrote %d frames\n", n)

	return n, nil
}
