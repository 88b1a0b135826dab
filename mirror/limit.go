package mirror

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// waitN blocks until lim admits n bytes. A nil limiter admits everything.
func waitN(ctx context.Context, lim *rate.Limiter, n int) error {
	if lim == nil {
		return nil
	}
	for n > 0 {
		step := min(n, lim.Burst())
		if err := lim.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

type limitedReader struct {
	ctx context.Context
	r   io.Reader
	lim *rate.Limiter
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.lim != nil && len(p) > l.lim.Burst() {
		p = p[:l.lim.Burst()]
	}
	n, err := l.r.Read(p)
	if werr := waitN(l.ctx, l.lim, n); werr != nil && err == nil {
		err = werr
	}
	return n, err
}

type limitedWriterAt struct {
	ctx context.Context
	w   io.WriterAt
	lim *rate.Limiter
}

func (l *limitedWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if err := waitN(l.ctx, l.lim, len(p)); err != nil {
		return 0, err
	}
	return l.w.WriteAt(p, off)
}
