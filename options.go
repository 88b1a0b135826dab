package experience

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/experience/codec"
	"github.com/hupe1980/experience/internal/fs"
	"github.com/hupe1980/experience/internal/mapcache"
	"github.com/hupe1980/experience/internal/mmap"
)

// AccessPattern is the kernel paging hint applied to every data mapping.
type AccessPattern = mmap.AccessPattern

// Access patterns accepted by WithAccessPattern.
const (
	AccessDefault    = mmap.AccessDefault
	AccessSequential = mmap.AccessSequential
	AccessRandom     = mmap.AccessRandom
	AccessWillNeed   = mmap.AccessWillNeed
)

// UnlimitedMappings keeps every data file mapped until the set is closed.
const UnlimitedMappings = mapcache.Unlimited

type options struct {
	logger          *Logger
	metrics         MetricsCollector
	concurrency     int
	maxOpenMappings int
	accessPattern   AccessPattern
	encoding        *EncodingVersion
	fs              fs.FileSystem
	codec           codec.Codec
}

// Option configures Discover.
type Option func(*options)

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector. Pass nil to disable metrics.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithConcurrency bounds the number of chunks opened in parallel during
// discovery. Values <= 0 select GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithMaxOpenMappings bounds the number of data files kept mapped at once.
// Idle mappings beyond the bound are unmapped least recently used first.
// Zero maps and unmaps a file around every read; UnlimitedMappings (the
// default) keeps every mapping until Close.
func WithMaxOpenMappings(n int) Option {
	return func(o *options) {
		o.maxOpenMappings = n
	}
}

// WithAccessPattern sets the paging hint for data mappings. Default: AccessRandom.
func WithAccessPattern(p AccessPattern) Option {
	return func(o *options) {
		o.accessPattern = p
	}
}

// WithEncodingVersion makes discovery reject chunks whose states do not
// carry the plane count of encoding v.
func WithEncodingVersion(v EncodingVersion) Option {
	return func(o *options) {
		o.encoding = &v
	}
}

// WithCodec sets the metadata codec. Default: codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// withFileSystem swaps the filesystem used for listing (tests only).
func withFileSystem(f fs.FileSystem) Option {
	return func(o *options) {
		o.fs = f
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:          NoopLogger(),
		metrics:         NoopMetricsCollector{},
		maxOpenMappings: mapcache.Unlimited,
		accessPattern:   mmap.AccessRandom,
		fs:              fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.concurrency <= 0 {
		o.concurrency = runtime.GOMAXPROCS(0)
	}
	return o
}

type selectOptions struct {
	seed    *uint64
	logger  *Logger
	metrics MetricsCollector
}

// SelectOption configures Select and SelectN.
type SelectOption func(*selectOptions)

// WithSeed makes the drawn subset reproducible.
func WithSeed(seed uint64) SelectOption {
	return func(o *selectOptions) {
		o.seed = &seed
	}
}

// WithSelectLogger configures structured logging for the selection.
func WithSelectLogger(logger *Logger) SelectOption {
	return func(o *selectOptions) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithSelectMetrics configures a metrics collector for the selection.
func WithSelectMetrics(mc MetricsCollector) SelectOption {
	return func(o *selectOptions) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

func applySelectOptions(optFns []SelectOption) selectOptions {
	o := selectOptions{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
