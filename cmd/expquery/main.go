// Command expquery inspects self-play experience without training on it.
//
// It discovers every session in a directory (optionally mirroring it from
// another directory, S3 or MinIO first), draws the requested subset and
// reports its size. With -scan it reads every selected example and prints
// reward statistics.
//
//	expquery -e ./experience -n 0.5 -scan
//	expquery -e ./cache -src /mnt/selfplay
//	expquery -e ./cache -s3-bucket selfplay -s3-prefix run-7/ -n 100000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hupe1980/experience"
	"github.com/hupe1980/experience/blobstore"
	minioblob "github.com/hupe1980/experience/blobstore/minio"
	s3blob "github.com/hupe1980/experience/blobstore/s3"
	"github.com/hupe1980/experience/loader"
	"github.com/hupe1980/experience/mirror"
)

type config struct {
	experienceDir   string
	srcDir          string
	subset          float64
	batchSize       int
	encodingVersion int
	seed            uint64
	scan            bool
	maxOpen         int
	concurrency     int
	logLevel        string
	jsonLogs        bool

	s3Bucket   string
	s3Prefix   string
	s3Region   string
	s3Endpoint string

	minioEndpoint  string
	minioBucket    string
	minioPrefix    string
	minioAccessKey string
	minioSecretKey string
	minioSecure    bool

	rateLimit int64
}

func parseFlags(args []string, stderr io.Writer) (*config, error) {
	fset := flag.NewFlagSet("expquery", flag.ContinueOnError)
	fset.SetOutput(stderr)

	cfg := &config{}
	fset.StringVar(&cfg.experienceDir, "e", "", "Experience directory (required)")
	fset.Float64Var(&cfg.subset, "n", 1.0, "Number or fraction of examples to use")
	fset.IntVar(&cfg.batchSize, "b", 256, "Batch size")
	fset.IntVar(&cfg.encodingVersion, "v", int(experience.EncodingV1), "Encoding version of the states (-1 disables the check)")
	fset.Uint64Var(&cfg.seed, "seed", 0, "Subset seed (0 = random)")
	fset.BoolVar(&cfg.scan, "scan", false, "Read every selected example and print statistics")
	fset.IntVar(&cfg.maxOpen, "max-open", experience.UnlimitedMappings, "Maximum data files mapped at once (-1 = unlimited)")
	fset.IntVar(&cfg.concurrency, "j", 0, "Parallelism for discovery and batch loading (0 = GOMAXPROCS)")
	fset.StringVar(&cfg.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fset.BoolVar(&cfg.jsonLogs, "log-json", false, "Emit JSON logs")

	fset.StringVar(&cfg.srcDir, "src", "", "Mirror experience from this directory first (e.g. an NFS mount)")
	fset.StringVar(&cfg.s3Bucket, "s3-bucket", "", "Mirror experience from this S3 bucket first")
	fset.StringVar(&cfg.s3Prefix, "s3-prefix", "", "Key prefix inside the S3 bucket")
	fset.StringVar(&cfg.s3Region, "s3-region", "", "AWS region override")
	fset.StringVar(&cfg.s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")

	fset.StringVar(&cfg.minioEndpoint, "minio-endpoint", "", "Mirror experience from this MinIO endpoint first")
	fset.StringVar(&cfg.minioBucket, "minio-bucket", "", "MinIO bucket")
	fset.StringVar(&cfg.minioPrefix, "minio-prefix", "", "Key prefix inside the MinIO bucket")
	fset.StringVar(&cfg.minioAccessKey, "minio-access-key", os.Getenv("MINIO_ACCESS_KEY"), "MinIO access key")
	fset.StringVar(&cfg.minioSecretKey, "minio-secret-key", os.Getenv("MINIO_SECRET_KEY"), "MinIO secret key")
	fset.BoolVar(&cfg.minioSecure, "minio-secure", true, "Use HTTPS for MinIO")

	fset.Int64Var(&cfg.rateLimit, "rate", 0, "Mirror download cap in bytes per second (0 = unlimited)")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if cfg.experienceDir == "" {
		fset.Usage()
		return nil, errors.New("missing -e experience directory")
	}
	sources := 0
	for _, s := range []string{cfg.srcDir, cfg.s3Bucket, cfg.minioEndpoint} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return nil, errors.New("-src, -s3-bucket and -minio-endpoint are mutually exclusive")
	}
	return cfg, nil
}

func newLogger(cfg *config, stderr io.Writer) (*experience.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid -log-level: %w", err)
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.jsonLogs {
		return experience.NewLogger(slog.NewJSONHandler(stderr, hopts)), nil
	}
	return experience.NewLogger(slog.NewTextHandler(stderr, hopts)), nil
}

func remoteStore(ctx context.Context, cfg *config) (blobstore.Store, string, error) {
	switch {
	case cfg.srcDir != "":
		return blobstore.NewLocalStore(cfg.srcDir), "", nil
	case cfg.s3Bucket != "":
		var opts []s3blob.Option
		if cfg.s3Region != "" {
			opts = append(opts, s3blob.WithRegion(cfg.s3Region))
		}
		if cfg.s3Endpoint != "" {
			opts = append(opts, s3blob.WithEndpoint(cfg.s3Endpoint))
		}
		store, err := s3blob.New(ctx, cfg.s3Bucket, opts...)
		return store, cfg.s3Prefix, err
	case cfg.minioEndpoint != "":
		store, err := minioblob.New(cfg.minioEndpoint, cfg.minioBucket, minioblob.Config{
			AccessKey: cfg.minioAccessKey,
			SecretKey: cfg.minioSecretKey,
			Secure:    cfg.minioSecure,
		})
		return store, cfg.minioPrefix, err
	default:
		return nil, "", nil
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	metrics := &experience.BasicMetricsCollector{}

	store, prefix, err := remoteStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		res, err := mirror.Run(ctx, store, cfg.experienceDir, func(o *mirror.Options) {
			o.Prefix = prefix
			o.BytesPerSecond = cfg.rateLimit
			o.Logger = logger
			o.Metrics = metrics
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "mirrored %d files (%d up to date, %d bytes)\n", res.Fetched, res.Skipped, res.Bytes)
	}

	opts := []experience.Option{
		experience.WithLogger(logger),
		experience.WithMetricsCollector(metrics),
		experience.WithMaxOpenMappings(cfg.maxOpen),
		experience.WithConcurrency(cfg.concurrency),
	}
	if cfg.encodingVersion >= 0 {
		opts = append(opts, experience.WithEncodingVersion(experience.EncodingVersion(cfg.encodingVersion)))
	}

	cs, err := experience.Discover(ctx, cfg.experienceDir, opts...)
	if err != nil {
		return err
	}
	defer cs.Close()

	fmt.Fprintf(stdout, "loaded %d chunks with %d examples\n", cs.NumChunks(), cs.Len())

	selectOpts := []experience.SelectOption{
		experience.WithSelectLogger(logger),
		experience.WithSelectMetrics(metrics),
	}
	if cfg.seed != 0 {
		selectOpts = append(selectOpts, experience.WithSeed(cfg.seed))
	}
	subset, err := experience.Select(cs, cfg.subset, selectOpts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "using subset of size %d\n", subset.Len())

	l, err := loader.New(subset, func(o *loader.Options) {
		o.BatchSize = cfg.batchSize
		o.Workers = cfg.concurrency
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d batches of %d\n", l.NumBatches(), l.BatchSize())

	if !cfg.scan {
		return nil
	}
	return scan(ctx, l, stdout)
}

// scan reads every batch and prints reward statistics.
func scan(ctx context.Context, l *loader.Loader, stdout io.Writer) error {
	start := time.Now()
	var (
		examples int
		decided  int
		wins     int
		visits   float64
	)
	err := l.Each(ctx, func(b *loader.Batch) error {
		for _, r := range b.Rows {
			examples++
			if r.Reward != 0 {
				decided++
			}
			if r.Reward > 0 {
				wins++
			}
			visits += r.VisitCounts.Sum()
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "scanned %d examples in %s\n", examples, time.Since(start).Round(time.Millisecond))
	if examples == 0 {
		return nil
	}
	fmt.Fprintf(stdout, "win rate: %.4f (decided %d, wins %d)\n",
		float64(decided)/float64(examples), decided, wins)
	fmt.Fprintf(stdout, "mean visits per example: %.1f\n", visits/float64(examples))
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "expquery:", err)
		os.Exit(1)
	}
}
