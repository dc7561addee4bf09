package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/ccvec"
	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/blobstore/minio"
	"github.com/hupe1980/ccvec/blobstore/s3"
	"github.com/hupe1980/ccvec/embedding"
	"github.com/hupe1980/ccvec/engine"
	"github.com/hupe1980/ccvec/ingest"
	"github.com/hupe1980/ccvec/internal/config"
	"github.com/hupe1980/ccvec/metastore"
)

// app holds everything a command needs, wired from a Config.
type app struct {
	cfg      *config.Config
	db       *ccvec.DB
	pipeline *ingest.Pipeline
	metrics  http.Handler
	logger   *slog.Logger

	closers []func() error
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newLogger(cfg config.LogConfig) (*ccvec.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if cfg.Format == "json" {
		return ccvec.NewJSONLogger(level), nil
	}
	return ccvec.NewTextLogger(level), nil
}

// awsConfig loads the default AWS config, lazily and once per region.
type awsConfig struct {
	ctx     context.Context
	configs map[string]aws.Config
}

func (a *awsConfig) load(region string) (aws.Config, error) {
	if cfg, ok := a.configs[region]; ok {
		return cfg, nil
	}
	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(a.ctx, optFns...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	if a.configs == nil {
		a.configs = make(map[string]aws.Config)
	}
	a.configs[region] = cfg
	return cfg, nil
}

// newApp wires storage, metadata, embedding and the index from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger.Logger}
	ac := &awsConfig{ctx: ctx}

	blobs, err := a.blobStore(ac, cfg.Storage.Bucket)
	if err != nil {
		return nil, err
	}
	commits, err := a.commitStore(ac)
	if err != nil {
		return nil, err
	}
	meta, err := a.metadataStore(ac)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	emb, err := a.embedder(ac)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pc, err := ccvec.NewPrometheusCollector(reg, "ccvec")
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	opts := []ccvec.Option{
		ccvec.WithBackend(ccvec.BackendKind(cfg.Index.Backend)),
		ccvec.WithCompression(cfg.Index.Compression),
		ccvec.WithRawVectors(cfg.Index.RawVectors),
		ccvec.WithNormalize(cfg.Index.Normalize),
		ccvec.WithRetry(cfg.Index.MaxRetries, engine.DefaultWriterOptions.InitialBackoff, engine.DefaultWriterOptions.MaxBackoff),
		ccvec.WithOversample(cfg.Index.Oversample),
		ccvec.WithConcurrency(cfg.Index.Concurrency),
		ccvec.WithMetricsCollector(pc),
		ccvec.WithLogger(logger),
	}
	if cfg.Index.Prefix != "" {
		opts = append(opts, ccvec.WithPrefix(cfg.Index.Prefix))
	}
	if cfg.Index.Kind == "hnsw" {
		opts = append(opts, ccvec.WithHNSW())
	}
	switch cfg.Index.Lock {
	case "mutex":
		opts = append(opts, ccvec.WithLocker(blobstore.NewMutexLocker()))
	case "file":
		opts = append(opts, ccvec.WithLocker(blobstore.NewFileLocker(cfg.Index.LockPath)))
	}

	db, err := ccvec.Open(blobs, commits, cfg.Index.Dimension, emb, meta, opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	source := blobs
	if cfg.Ingest.SourceBucket != "" && cfg.Ingest.SourceBucket != cfg.Storage.Bucket {
		if source, err = a.blobStore(ac, cfg.Ingest.SourceBucket); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	a.pipeline = ingest.New(source, meta, emb, db, cfg.Index.Dimension, func(o *ingest.Options) {
		o.UsePrecomputed = cfg.Ingest.UsePrecomputedOrDefault()
		o.Concurrency = cfg.Ingest.Concurrency
		o.Logger = logger.Logger
	})
	return a, nil
}

func (a *app) blobStore(ac *awsConfig, bucket string) (blobstore.BlobStore, error) {
	sc := a.cfg.Storage

	var store blobstore.BlobStore
	switch sc.Backend {
	case "memory":
		store = blobstore.NewMemoryStore()
	case "local":
		if err := os.MkdirAll(sc.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
		store = blobstore.NewLocalStore(sc.Path)
	case "s3":
		cfg, err := ac.load(sc.Region)
		if err != nil {
			return nil, err
		}
		client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
			if sc.Endpoint != "" {
				o.BaseEndpoint = &sc.Endpoint
				o.UsePathStyle = true
			}
		})
		store = s3.NewStore(client, bucket, sc.Prefix)
	case "minio":
		client, err := minio.NewClient(minio.Options{
			Endpoint:  sc.Endpoint,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
			Region:    sc.Region,
			Secure:    sc.Secure,
		})
		if err != nil {
			return nil, err
		}
		store = minio.NewStore(client, bucket, sc.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}

	if sc.CacheBytes > 0 {
		store = blobstore.NewCachingStore(store, sc.CacheBytes)
	}
	return store, nil
}

func (a *app) commitStore(ac *awsConfig) (blobstore.CommitStore, error) {
	sc := a.cfg.Storage
	switch sc.Commits {
	case "memory":
		return blobstore.NewMemoryCommitStore(), nil
	case "local":
		return blobstore.NewLocalCommitStore(filepath.Join(sc.Path, "commits")), nil
	case "dynamodb":
		cfg, err := ac.load(sc.Region)
		if err != nil {
			return nil, err
		}
		baseURI := fmt.Sprintf("s3://%s/%s", sc.Bucket, sc.Prefix)
		return s3.NewDDBCommitStore(dynamodb.NewFromConfig(cfg), sc.CommitTable, baseURI), nil
	default:
		return nil, fmt.Errorf("unknown commit store %q", sc.Commits)
	}
}

func (a *app) metadataStore(ac *awsConfig) (engine.MetadataStore, error) {
	mc := a.cfg.Metadata
	switch mc.Backend {
	case "memory":
		return metastore.NewMemory(), nil
	case "sqlite":
		if dir := filepath.Dir(mc.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create metadata dir: %w", err)
			}
		}
		s, err := metastore.NewSQLite(mc.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "dynamodb":
		cfg, err := ac.load(a.cfg.Storage.Region)
		if err != nil {
			return nil, err
		}
		var opts []metastore.DynamoDBOption
		if mc.ConsistentReads {
			opts = append(opts, metastore.WithConsistentReads())
		}
		return metastore.NewDynamoDB(dynamodb.NewFromConfig(cfg), mc.Table, opts...), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", mc.Backend)
	}
}

func (a *app) embedder(ac *awsConfig) (engine.Embedder, error) {
	ec := a.cfg.Embedding

	var emb engine.Embedder
	switch ec.Provider {
	case "hash":
		emb = embedding.NewHash(a.cfg.Index.Dimension)
	case "titan":
		cfg, err := ac.load(ec.Region)
		if err != nil {
			return nil, err
		}
		client := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
			if ec.Endpoint != "" {
				o.BaseEndpoint = aws.String(ec.Endpoint)
			}
		})
		t, err := embedding.NewTitan(client, func(o *embedding.TitanOptions) {
			if ec.ModelID != "" {
				o.ModelID = ec.ModelID
			}
			o.Dimensions = a.cfg.Index.Dimension
		})
		if err != nil {
			return nil, err
		}
		emb = t
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}

	if ec.RateLimit > 0 {
		emb = embedding.NewRateLimited(emb, ec.RateLimit, ec.Burst)
	}
	if ec.CacheSize > 0 {
		emb = embedding.NewCached(emb, ec.CacheSize)
	}
	return emb, nil
}
