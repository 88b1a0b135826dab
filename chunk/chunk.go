package chunk

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/experience/codec"
	"github.com/hupe1980/experience/internal/fs"
	"github.com/hupe1980/experience/internal/mapcache"
	"github.com/hupe1980/experience/internal/mmap"
)

// File name stems of the three members of a session.
const (
	StatesStem      = "states"
	RewardsStem     = "rewards"
	VisitCountsStem = "visit_counts"
	MetadataExt     = ".json"
)

// Mapper hands out read-only mappings of data files.
// The release function must be called once the returned mapping is no longer read.
type Mapper interface {
	Acquire(path string) (*mmap.Mapping, func(), error)
}

type options struct {
	mapper  Mapper
	codec   codec.Codec
	pattern mmap.AccessPattern
	fs      fs.FileSystem
}

// Option configures Open.
type Option func(*options)

// WithMapper shares a mapping cache between chunks. The chunk does not
// close a shared mapper.
func WithMapper(m Mapper) Option {
	return func(o *options) {
		o.mapper = m
	}
}

// WithCodec sets the codec used to decode metadata records.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithAccessPattern sets the madvise hint of the chunk's private mappings.
// It has no effect together with WithMapper.
func WithAccessPattern(p mmap.AccessPattern) Option {
	return func(o *options) {
		o.pattern = p
	}
}

// WithFileSystem sets the file system used to read metadata records and
// check data files. Mappings always go through the operating system.
func WithFileSystem(f fs.FileSystem) Option {
	return func(o *options) {
		if f == nil {
			f = fs.Default
		}
		o.fs = f
	}
}

// Chunk is one self-play session: states, rewards and visit counts that
// share a label, a directory and an example count.
//
// A Chunk is immutable after Open and safe for concurrent use.
type Chunk struct {
	label       string
	dir         string
	states      *Metadata
	rewards     *Metadata
	visitCounts *Metadata
	n           int

	mapper     Mapper
	ownsMapper *mapcache.Cache
	closed     atomic.Bool
}

// Paths returns the three metadata paths for label in dir.
func Paths(dir, label string) (states, rewards, visitCounts string) {
	return filepath.Join(dir, StatesStem+label+MetadataExt),
		filepath.Join(dir, RewardsStem+label+MetadataExt),
		filepath.Join(dir, VisitCountsStem+label+MetadataExt)
}

// LabelOf extracts the label from a states metadata file name, e.g.
// "states_12.json" -> "_12". ok is false for any other file name.
func LabelOf(name string) (label string, ok bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, StatesStem) || !strings.HasSuffix(base, MetadataExt) {
		return "", false
	}
	if len(base) < len(StatesStem)+len(MetadataExt) {
		return "", false
	}
	return base[len(StatesStem) : len(base)-len(MetadataExt)], true
}

// Open parses the three metadata records of one session and validates them.
func Open(statesPath, rewardsPath, visitCountsPath string, optFns ...Option) (*Chunk, error) {
	opts := options{pattern: mmap.AccessRandom, fs: fs.Default}
	for _, fn := range optFns {
		fn(&opts)
	}

	label, ok := LabelOf(statesPath)
	if !ok {
		label = filepath.Base(statesPath)
	}

	dir, err := sameDir(label, statesPath, rewardsPath, visitCountsPath)
	if err != nil {
		return nil, err
	}

	states, err := parseMetadata(opts.fs, opts.codec, statesPath)
	if err != nil {
		return nil, err
	}
	rewards, err := parseMetadata(opts.fs, opts.codec, rewardsPath)
	if err != nil {
		return nil, err
	}
	visitCounts, err := parseMetadata(opts.fs, opts.codec, visitCountsPath)
	if err != nil {
		return nil, err
	}

	n := states.Rows()
	if rewards.Rows() != n || visitCounts.Rows() != n {
		return nil, inconsistent(label, "example counts differ: states %d, rewards %d, visit_counts %d",
			n, rewards.Rows(), visitCounts.Rows())
	}
	if rewards.RowElems() != 1 {
		return nil, inconsistent(label, "rewards hold %v per example, want a scalar", rewards.ExampleShape())
	}

	for _, md := range []*Metadata{states, rewards, visitCounts} {
		if err := checkDataFile(opts.fs, md); err != nil {
			return nil, err
		}
	}

	c := &Chunk{
		label:       label,
		dir:         dir,
		states:      states,
		rewards:     rewards,
		visitCounts: visitCounts,
		n:           n,
		mapper:      opts.mapper,
	}
	if c.mapper == nil {
		c.ownsMapper = mapcache.New(3, opts.pattern)
		c.mapper = c.ownsMapper
	}
	return c, nil
}

func sameDir(label string, paths ...string) (string, error) {
	var dir string
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", p, err)
		}
		d := filepath.Dir(abs)
		if i == 0 {
			dir = d
			continue
		}
		if d != dir {
			return "", inconsistent(label, "members split across %s and %s", dir, d)
		}
	}
	return dir, nil
}

func checkDataFile(fsys fs.FileSystem, md *Metadata) error {
	fi, err := fsys.Stat(md.DataPath())
	if err != nil {
		return &MetadataError{Path: md.Path, Field: "data", Reason: "backing file unavailable", cause: err}
	}
	if fi.IsDir() {
		return &MetadataError{Path: md.Path, Field: "data", Reason: "backing file is a directory"}
	}
	if fi.Size() < md.DataBytes() {
		return &MetadataError{Path: md.Path, Field: "data",
			Reason: fmt.Sprintf("backing file holds %d bytes, shape %v %s needs %d", fi.Size(), md.Shape, md.DType, md.DataBytes())}
	}
	return nil
}

// Label returns the session label shared by the three members.
func (c *Chunk) Label() string { return c.label }

// Dir returns the absolute directory holding the session.
func (c *Chunk) Dir() string { return c.dir }

// States returns the states metadata.
func (c *Chunk) States() *Metadata { return c.states }

// Rewards returns the rewards metadata.
func (c *Chunk) Rewards() *Metadata { return c.rewards }

// VisitCounts returns the visit-counts metadata.
func (c *Chunk) VisitCounts() *Metadata { return c.visitCounts }

// Len returns the number of examples.
func (c *Chunk) Len() int { return c.n }

// DataBytes returns the total size of the three arrays.
func (c *Chunk) DataBytes() int64 {
	return c.states.DataBytes() + c.rewards.DataBytes() + c.visitCounts.DataBytes()
}

// Get returns example i.
func (c *Chunk) Get(i int) (Row, error) {
	if c.closed.Load() {
		return Row{}, ErrClosed
	}
	if err := CheckIndex(i, c.n); err != nil {
		return Row{}, err
	}

	state, err := c.read(c.states, i)
	if err != nil {
		return Row{}, err
	}
	reward, err := c.read(c.rewards, i)
	if err != nil {
		return Row{}, err
	}
	visitCounts, err := c.read(c.visitCounts, i)
	if err != nil {
		return Row{}, err
	}

	return Row{
		State:       state,
		Reward:      reward.Value(0),
		VisitCounts: visitCounts,
	}, nil
}

func (c *Chunk) read(md *Metadata, i int) (Tensor, error) {
	m, release, err := c.mapper.Acquire(md.DataPath())
	if errors.Is(err, mapcache.ErrClosed) || errors.Is(err, mmap.ErrClosed) {
		return Tensor{}, fmt.Errorf("chunk %q: %w", c.label, ErrClosed)
	}
	if err != nil {
		return Tensor{}, fmt.Errorf("chunk %q: map %s: %w", c.label, md.Data, err)
	}
	defer release()

	rb := md.RowBytes()
	b, err := m.Slice(i*rb, rb)
	if err != nil {
		return Tensor{}, fmt.Errorf("chunk %q: read %s row %d: %w", c.label, md.Data, i, err)
	}

	return Tensor{
		shape: md.ExampleShape(),
		dtype: md.DType,
		data:  append([]byte(nil), b...),
	}, nil
}

// Close releases the chunk's private mappings. It is idempotent.
func (c *Chunk) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.ownsMapper != nil {
		return c.ownsMapper.Close()
	}
	return nil
}
