package experience

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hupe1980/experience/chunk"
	"github.com/hupe1980/experience/internal/fs"
	"github.com/hupe1980/experience/internal/mapcache"
	"golang.org/x/sync/errgroup"
)

// ChunkSet presents every chunk found in a directory as one dataset.
//
// Global index i belongs to chunk k when offsets[k] <= i < offsets[k+1].
// A ChunkSet is immutable after Discover and safe for concurrent use.
type ChunkSet struct {
	dir      string
	chunks   []*chunk.Chunk
	offsets  []int // len(chunks)+1, offsets[0] == 0
	mappings *mapcache.Cache
	metrics  MetricsCollector
	closed   atomic.Bool
}

// Discover scans dir for sessions and opens every one of them.
//
// A session is identified by a states<label>.json record; its
// rewards<label>.json and visit_counts<label>.json records must exist in
// the same directory, otherwise discovery fails with ErrMissingChunkMember.
// Chunks are ordered by natural label order. A directory without any
// session yields an empty, valid set.
//
// On error every chunk opened so far is closed and no set is returned.
func Discover(ctx context.Context, dir string, optFns ...Option) (*ChunkSet, error) {
	opts := applyOptions(optFns)
	logger := opts.logger.WithDir(dir)
	start := time.Now()

	cs, err := discover(ctx, dir, opts, logger)

	chunks, examples := 0, 0
	if cs != nil {
		chunks, examples = len(cs.chunks), cs.Len()
	}
	elapsed := time.Since(start)
	opts.metrics.RecordDiscover(chunks, examples, elapsed, err)
	logger.LogDiscover(ctx, chunks, examples, elapsed, err)

	return cs, err
}

func discover(ctx context.Context, dir string, opts options, logger *Logger) (*ChunkSet, error) {
	labels, err := scanLabels(ctx, opts.fs, dir, logger)
	if err != nil {
		return nil, err
	}

	// Every triple must be complete before anything is opened.
	for _, label := range labels {
		if err := checkMembers(opts.fs, dir, label); err != nil {
			return nil, err
		}
	}

	var planes int
	if opts.encoding != nil {
		if planes, err = StatePlanes(*opts.encoding); err != nil {
			return nil, err
		}
	}

	mappings := mapcache.New(opts.maxOpenMappings, opts.accessPattern)
	chunks := make([]*chunk.Chunk, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i, label := range labels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, r, v := chunk.Paths(dir, label)
			c, err := chunk.Open(s, r, v,
				chunk.WithMapper(mappings),
				chunk.WithCodec(opts.codec),
				chunk.WithFileSystem(opts.fs),
			)
			if err != nil {
				return fmt.Errorf("open chunk %q: %w", label, err)
			}
			chunks[i] = c
			if planes > 0 {
				if err := checkPlanes(c, planes); err != nil {
					return err
				}
			}
			logger.WithLabel(label).DebugContext(gctx, "chunk opened", "examples", c.Len())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeChunks(chunks)
		_ = mappings.Close()
		return nil, err
	}

	offsets := make([]int, len(chunks)+1)
	for k, c := range chunks {
		offsets[k+1] = offsets[k] + c.Len()
	}

	return &ChunkSet{
		dir:      dir,
		chunks:   chunks,
		offsets:  offsets,
		mappings: mappings,
		metrics:  opts.metrics,
	}, nil
}

// scanLabels lists dir and returns the labels of all states records in
// natural order.
func scanLabels(ctx context.Context, fsys fs.FileSystem, dir string, logger *Logger) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan experience directory: %w", err)
	}

	present := make(map[string]bool, len(entries))
	var labels []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		present[e.Name()] = true
		if label, ok := chunk.LabelOf(e.Name()); ok {
			labels = append(labels, label)
		}
	}

	// Members without a states record are never read; surface them anyway.
	for name := range present {
		for _, stem := range []string{chunk.RewardsStem, chunk.VisitCountsStem} {
			label, ok := memberLabel(name, stem)
			if ok && !present[chunk.StatesStem+label+chunk.MetadataExt] {
				logger.WarnContext(ctx, "ignoring record without states", "file", name)
			}
		}
	}

	slices.SortFunc(labels, compareLabels)
	return labels, nil
}

func memberLabel(name, stem string) (string, bool) {
	if !strings.HasPrefix(name, stem) || !strings.HasSuffix(name, chunk.MetadataExt) ||
		len(name) < len(stem)+len(chunk.MetadataExt) {
		return "", false
	}
	return name[len(stem) : len(name)-len(chunk.MetadataExt)], true
}

func checkMembers(fsys fs.FileSystem, dir, label string) error {
	_, rewards, visitCounts := chunk.Paths(dir, label)
	for _, m := range []struct{ member, path string }{
		{chunk.RewardsStem, rewards},
		{chunk.VisitCountsStem, visitCounts},
	} {
		fi, err := fsys.Stat(m.path)
		if errors.Is(err, os.ErrNotExist) || (err == nil && fi.IsDir()) {
			return &MissingMemberError{Label: label, Member: m.member, Path: m.path}
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", m.path, err)
		}
	}
	return nil
}

func checkPlanes(c *chunk.Chunk, planes int) error {
	shape := c.States().ExampleShape()
	if len(shape) == 0 || shape[0] != planes {
		return fmt.Errorf("%w: chunk %q states have example shape %v, want %d planes",
			ErrShapeMismatch, c.Label(), shape, planes)
	}
	return nil
}

func closeChunks(chunks []*chunk.Chunk) {
	for _, c := range chunks {
		if c != nil {
			_ = c.Close()
		}
	}
}

// Dir returns the directory the set was discovered in.
func (cs *ChunkSet) Dir() string { return cs.dir }

// Len returns the total number of examples across all chunks.
func (cs *ChunkSet) Len() int {
	return cs.offsets[len(cs.offsets)-1]
}

// NumChunks returns the number of chunks.
func (cs *ChunkSet) NumChunks() int { return len(cs.chunks) }

// Chunk returns chunk k in discovery order.
func (cs *ChunkSet) Chunk(k int) *chunk.Chunk { return cs.chunks[k] }

// Chunks returns the chunks in discovery order.
func (cs *ChunkSet) Chunks() []*chunk.Chunk {
	return slices.Clone(cs.chunks)
}

// Offsets returns the cumulative example counts; Offsets()[k] is the global
// index of chunk k's first example and the last element equals Len().
func (cs *ChunkSet) Offsets() []int {
	return slices.Clone(cs.offsets)
}

// Locate translates a global index into the owning chunk and the local index
// inside it. An index equal to an offset belongs to the chunk that offset starts.
func (cs *ChunkSet) Locate(i int) (k, local int, err error) {
	if err := chunk.CheckIndex(i, cs.Len()); err != nil {
		return 0, 0, err
	}
	// Smallest k whose end lies past i. Empty chunks have offsets[k] ==
	// offsets[k+1] and are skipped.
	k = sort.Search(len(cs.chunks), func(k int) bool {
		return cs.offsets[k+1] > i
	})
	return k, i - cs.offsets[k], nil
}

// Get returns the example at global index i.
func (cs *ChunkSet) Get(i int) (Row, error) {
	start := time.Now()
	row, err := cs.get(i)
	cs.metrics.RecordGet(time.Since(start), err)
	return row, err
}

func (cs *ChunkSet) get(i int) (Row, error) {
	if cs.closed.Load() {
		return Row{}, ErrClosed
	}
	k, local, err := cs.Locate(i)
	if err != nil {
		return Row{}, err
	}
	return cs.chunks[k].Get(local)
}

// Stats describes a chunk set.
type Stats struct {
	Chunks        int
	Examples      int
	DataBytes     int64
	OpenMappings  int
	MappingHits   int64
	MappingMisses int64
}

// Stats returns size and mapping-cache counters.
func (cs *ChunkSet) Stats() Stats {
	s := Stats{
		Chunks:       len(cs.chunks),
		Examples:     cs.Len(),
		OpenMappings: cs.mappings.Len(),
	}
	for _, c := range cs.chunks {
		s.DataBytes += c.DataBytes()
	}
	s.MappingHits, s.MappingMisses, _ = cs.mappings.Stats()
	return s
}

// Close unmaps every data file. It is idempotent.
func (cs *ChunkSet) Close() error {
	if cs.closed.Swap(true) {
		return nil
	}
	closeChunks(cs.chunks)
	return cs.mappings.Close()
}

// compareLabels orders labels naturally: runs of digits compare by numeric
// value, everything else byte-wise, with a plain comparison as tie-breaker
// (so "_01" and "_1" still have a fixed order).
func compareLabels(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) - len(nb)
			}
			if c := strings.Compare(na, nb); c != 0 {
				return c
			}
			continue
		}
		if a[i] != b[j] {
			return int(a[i]) - int(b[j])
		}
		i++
		j++
	}
	if d := (len(a) - i) - (len(b) - j); d != 0 {
		return d
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
