// Package loader assembles fixed-size batches from an experience dataset.
//
// Batches cover the dataset in index order; every row of a batch is fetched
// concurrently. Shuffling is the job of the dataset (see experience.Select),
// so the loader itself is deterministic.
package loader

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/hupe1980/experience"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidBatchSize is returned by New for a batch size below one.
var ErrInvalidBatchSize = errors.New("loader: batch size must be positive")

// Options contains configuration for the Loader.
type Options struct {
	// BatchSize is the number of examples per batch.
	BatchSize int

	// DropLast skips a trailing batch smaller than BatchSize.
	DropLast bool

	// Workers bounds the rows fetched in parallel. Values <= 0 select GOMAXPROCS.
	Workers int
}

// DefaultOptions returns default loader options.
var DefaultOptions = Options{
	BatchSize: 256,
	DropLast:  false,
	Workers:   0,
}

// Loader splits a dataset into batches.
type Loader struct {
	ds   experience.Dataset
	opts Options
}

// New creates a Loader over ds.
func New(ds experience.Dataset, optFns ...func(o *Options)) (*Loader, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, opts.BatchSize)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	return &Loader{ds: ds, opts: opts}, nil
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() experience.Dataset { return l.ds }

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int { return l.opts.BatchSize }

// NumBatches returns the number of batches per pass.
func (l *Loader) NumBatches() int {
	n := l.ds.Len()
	if l.opts.DropLast {
		return n / l.opts.BatchSize
	}
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Batch loads batch b, 0 <= b < NumBatches().
func (l *Loader) Batch(ctx context.Context, b int) (*Batch, error) {
	if b < 0 || b >= l.NumBatches() {
		return nil, fmt.Errorf("batch %d: %w", b, &experience.IndexError{Index: b, Len: l.NumBatches()})
	}

	start := b * l.opts.BatchSize
	end := min(start+l.opts.BatchSize, l.ds.Len())
	rows := make([]experience.Row, end-start)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)
	for j := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := l.ds.Get(start + j)
			if err != nil {
				return err
			}
			rows[j] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch %d: %w", b, err)
	}

	return &Batch{Index: b, Start: start, Rows: rows}, nil
}

// Each loads every batch in order and calls fn with it. It stops at the
// first error returned by fn or by loading.
func (l *Loader) Each(ctx context.Context, fn func(*Batch) error) error {
	for b := range l.NumBatches() {
		batch, err := l.Batch(ctx, b)
		if err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
