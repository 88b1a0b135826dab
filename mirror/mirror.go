// Package mirror copies experience from a blob store into a local directory.
//
// Chunks are memory-mapped, so they must live on a local file system.
// Run lists a store, downloads every blob that changed since the previous
// run and writes it under the same relative name. Blobs ending in ".zst"
// or ".lz4" are decompressed on the fly and stored without the suffix.
//
// Every file is written to a ".part" sibling first and renamed once it is
// complete and synced, so a concurrent or later Discover never sees a
// partial session member.
package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/experience"
	"github.com/hupe1980/experience/blobstore"
	"github.com/hupe1980/experience/internal/fs"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// PartSuffix marks files that are still being written.
const PartSuffix = ".part"

// Options contains configuration for Run.
type Options struct {
	// Prefix restricts the mirror to blobs whose name starts with it.
	// The prefix is stripped from local file names.
	Prefix string

	// Concurrency is the number of blobs fetched in parallel.
	Concurrency int

	// BytesPerSecond caps the combined download rate. Zero disables the cap.
	BytesPerSecond int64

	// Force re-downloads blobs that are already up to date.
	Force bool

	// FileSystem is used for every local file operation.
	FileSystem fs.FileSystem

	Logger  *experience.Logger
	Metrics experience.MetricsCollector
}

// DefaultOptions returns default mirror options.
var DefaultOptions = Options{
	Concurrency: 4,
}

// Result summarizes a mirror run.
type Result struct {
	Fetched int
	Skipped int
	// Bytes counts bytes written locally, after decompression.
	Bytes int64
	// Files lists the local files written, relative to the directory.
	Files []string
}

type compression int

const (
	compressionNone compression = iota
	compressionZstd
	compressionLZ4
)

// localName strips the compression suffix from a blob name.
func localName(name string) (string, compression) {
	switch path.Ext(name) {
	case ".zst":
		return name[:len(name)-len(".zst")], compressionZstd
	case ".lz4":
		return name[:len(name)-len(".lz4")], compressionLZ4
	default:
		return name, compressionNone
	}
}

type task struct {
	info  blobstore.Info
	local string // relative to the mirror directory, OS separators
	comp  compression
}

// Run mirrors store into dir.
func Run(ctx context.Context, store blobstore.Store, dir string, optFns ...func(o *Options)) (*Result, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}
	if opts.Logger == nil {
		opts.Logger = experience.NoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = experience.NoopMetricsCollector{}
	}

	logger := opts.Logger.WithDir(dir)
	res, err := run(ctx, store, dir, opts, logger)
	logger.LogMirror(ctx, res.Fetched, res.Skipped, res.Bytes, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func run(ctx context.Context, store blobstore.Store, dir string, opts Options, logger *experience.Logger) (*Result, error) {
	res := &Result{}
	fsys := opts.FileSystem

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("create mirror directory: %w", err)
	}
	st, err := LoadState(fsys, dir)
	if err != nil {
		return res, err
	}

	infos, err := store.List(ctx, opts.Prefix)
	if err != nil {
		return res, fmt.Errorf("list blobs: %w", err)
	}

	var tasks []task
	for _, info := range infos {
		rel, comp := localName(info.Name[len(opts.Prefix):])
		local := filepath.FromSlash(rel)
		if !filepath.IsLocal(local) || filepath.Base(local) == StateFileName {
			logger.WarnContext(ctx, "skipping blob with unusable name", "blob", info.Name)
			continue
		}
		if !opts.Force && st.upToDate(fsys, dir, info.Name, info.Size, info.ModTime) {
			res.Skipped++
			continue
		}
		tasks = append(tasks, task{info: info, local: local, comp: comp})
	}

	var limiter *rate.Limiter
	if opts.BytesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.BytesPerSecond), int(min(opts.BytesPerSecond, 1<<20)))
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			n, err := fetch(gctx, store, fsys, dir, t, limiter)
			opts.Metrics.RecordMirror(n, time.Since(start), err)
			if err != nil {
				return fmt.Errorf("mirror %s: %w", t.info.Name, err)
			}
			logger.DebugContext(gctx, "blob mirrored", "blob", t.info.Name, "bytes", n)

			mu.Lock()
			defer mu.Unlock()
			st.Objects[t.info.Name] = Entry{Size: t.info.Size, ModTime: t.info.ModTime, Local: t.local}
			res.Fetched++
			res.Bytes += n
			res.Files = append(res.Files, t.local)
			return nil
		})
	}
	werr := g.Wait()

	// Record whatever completed, even when another fetch failed.
	if res.Fetched > 0 {
		if err := st.save(fsys, dir); err != nil && werr == nil {
			werr = fmt.Errorf("save mirror state: %w", err)
		}
	}
	return res, werr
}

// fetch copies one blob into dir and returns the number of bytes written.
func fetch(ctx context.Context, store blobstore.Store, fsys fs.FileSystem, dir string, t task, limiter *rate.Limiter) (int64, error) {
	target := filepath.Join(dir, t.local)
	if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	tmpPath := target + PartSuffix
	f, err := fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := transfer(ctx, store, t, f, limiter)
	if err != nil {
		_ = f.Close()
		_ = fsys.Remove(tmpPath)
		return n, err
	}
	if err := commit(fsys, f, tmpPath, target); err != nil {
		return n, err
	}
	return n, nil
}

func transfer(ctx context.Context, store blobstore.Store, t task, f fs.File, limiter *rate.Limiter) (int64, error) {
	if d, ok := store.(blobstore.Downloader); ok && t.comp == compressionNone {
		return d.Download(ctx, t.info.Name, &limitedWriterAt{ctx: ctx, w: f, lim: limiter})
	}

	blob, err := store.Open(ctx, t.info.Name)
	if err != nil {
		return 0, err
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	var r io.Reader = &limitedReader{ctx: ctx, r: rc, lim: limiter}
	switch t.comp {
	case compressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return 0, err
		}
		defer dec.Close()
		r = dec
	case compressionLZ4:
		r = lz4.NewReader(r)
	}
	return io.Copy(f, r)
}
