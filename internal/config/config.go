// Package config provides configuration loading for the ccvec server and CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Storage   StorageConfig   `yaml:"storage"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MaxK caps the k accepted by the search endpoint.
	MaxK int `yaml:"max_k"`
}

// IndexConfig shapes the persisted index and its writers.
type IndexConfig struct {
	Dimension   int    `yaml:"dimension"`
	Backend     string `yaml:"backend"` // ann, bruteforce
	Kind        string `yaml:"kind"`    // flat, hnsw
	Compression string `yaml:"compression"`
	Prefix      string `yaml:"prefix"`
	RawVectors  bool   `yaml:"raw_vectors"`
	Normalize   bool   `yaml:"normalize"`
	Lock        string `yaml:"lock"` // none, mutex, file
	LockPath    string `yaml:"lock_path"`
	MaxRetries  uint64 `yaml:"max_retries"`
	Oversample  int    `yaml:"oversample"`
	Concurrency int    `yaml:"concurrency"`

	Prune PruneConfig `yaml:"prune"`
}

// PruneConfig schedules removal of superseded index versions.
type PruneConfig struct {
	// Schedule is a cron expression; empty disables scheduled pruning.
	Schedule string `yaml:"schedule"`
	Keep     int    `yaml:"keep"`
}

// StorageConfig selects where blobs and commits live.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // memory, local, s3, minio
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`

	// CacheBytes enables an in-memory cache of immutable blobs.
	CacheBytes int64 `yaml:"cache_bytes"`

	Commits string `yaml:"commits"` // memory, local, dynamodb
	// CommitTable is the DynamoDB table used when Commits is dynamodb.
	CommitTable string `yaml:"commit_table"`
}

// MetadataConfig selects the metadata store.
type MetadataConfig struct {
	Backend         string `yaml:"backend"` // memory, sqlite, dynamodb
	Path            string `yaml:"path"`
	Table           string `yaml:"table"`
	ConsistentReads bool   `yaml:"consistent_reads"`
}

// EmbeddingConfig selects the embedding gateway.
type EmbeddingConfig struct {
	Provider  string  `yaml:"provider"` // titan, hash
	ModelID   string  `yaml:"model_id"`
	Region    string  `yaml:"region"`
	Endpoint  string  `yaml:"endpoint"`
	CacheSize int     `yaml:"cache_size"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// IngestConfig configures the index request pipeline.
type IngestConfig struct {
	// SourceBucket holds transcript documents. Empty reads them from the
	// index storage backend.
	SourceBucket   string `yaml:"source_bucket"`
	UsePrecomputed *bool  `yaml:"use_precomputed"`
	Concurrency    int    `yaml:"concurrency"`
}

// UsePrecomputedOrDefault returns whether precomputed embeddings are used;
// defaults to true when unset.
func (c *IngestConfig) UsePrecomputedOrDefault() bool {
	if c.UsePrecomputed != nil {
		return *c.UsePrecomputed
	}
	return true
}

// Load reads the config file at path, applies environment overrides and
// defaults. An empty path starts from defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Index.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("index.dimension must be positive, got %d", c.Index.Dimension))
	}
	if !oneOf(c.Index.Backend, "ann", "bruteforce") {
		errs = append(errs, fmt.Errorf("index.backend: unknown %q", c.Index.Backend))
	}
	if !oneOf(c.Index.Kind, "flat", "hnsw") {
		errs = append(errs, fmt.Errorf("index.kind: unknown %q", c.Index.Kind))
	}
	if !oneOf(c.Index.Lock, "none", "mutex", "file") {
		errs = append(errs, fmt.Errorf("index.lock: unknown %q", c.Index.Lock))
	}
	if !oneOf(c.Storage.Backend, "memory", "local", "s3", "minio") {
		errs = append(errs, fmt.Errorf("storage.backend: unknown %q", c.Storage.Backend))
	}
	if !oneOf(c.Storage.Commits, "memory", "local", "dynamodb") {
		errs = append(errs, fmt.Errorf("storage.commits: unknown %q", c.Storage.Commits))
	}
	if (c.Storage.Backend == "s3" || c.Storage.Backend == "minio") && c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required for s3 and minio"))
	}
	if c.Storage.Backend == "minio" && c.Storage.Endpoint == "" {
		errs = append(errs, errors.New("storage.endpoint is required for minio"))
	}
	if !oneOf(c.Metadata.Backend, "memory", "sqlite", "dynamodb") {
		errs = append(errs, fmt.Errorf("metadata.backend: unknown %q", c.Metadata.Backend))
	}
	if !oneOf(c.Embedding.Provider, "titan", "hash") {
		errs = append(errs, fmt.Errorf("embedding.provider: unknown %q", c.Embedding.Provider))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// envVar binds an environment variable to a config field.
type envVar struct {
	name string
	set  func(c *Config, v string) error
}

func str(dst func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func integer(dst func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func boolean(dst func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

var envVars = []envVar{
	{"CCVEC_LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
	{"CCVEC_LOG_FORMAT", str(func(c *Config) *string { return &c.Log.Format })},
	{"CCVEC_SERVER_HOST", str(func(c *Config) *string { return &c.Server.Host })},
	{"CCVEC_SERVER_PORT", integer(func(c *Config) *int { return &c.Server.Port })},
	{"CCVEC_INDEX_DIMENSION", integer(func(c *Config) *int { return &c.Index.Dimension })},
	{"CCVEC_INDEX_BACKEND", str(func(c *Config) *string { return &c.Index.Backend })},
	{"CCVEC_INDEX_KIND", str(func(c *Config) *string { return &c.Index.Kind })},
	{"CCVEC_INDEX_COMPRESSION", str(func(c *Config) *string { return &c.Index.Compression })},
	{"CCVEC_INDEX_LOCK", str(func(c *Config) *string { return &c.Index.Lock })},
	{"CCVEC_INDEX_RAW_VECTORS", boolean(func(c *Config) *bool { return &c.Index.RawVectors })},
	{"CCVEC_PRUNE_SCHEDULE", str(func(c *Config) *string { return &c.Index.Prune.Schedule })},
	{"CCVEC_PRUNE_KEEP", integer(func(c *Config) *int { return &c.Index.Prune.Keep })},
	{"CCVEC_STORAGE_BACKEND", str(func(c *Config) *string { return &c.Storage.Backend })},
	{"CCVEC_STORAGE_PATH", str(func(c *Config) *string { return &c.Storage.Path })},
	{"CCVEC_STORAGE_BUCKET", str(func(c *Config) *string { return &c.Storage.Bucket })},
	{"CCVEC_STORAGE_PREFIX", str(func(c *Config) *string { return &c.Storage.Prefix })},
	{"CCVEC_STORAGE_REGION", str(func(c *Config) *string { return &c.Storage.Region })},
	{"CCVEC_STORAGE_ENDPOINT", str(func(c *Config) *string { return &c.Storage.Endpoint })},
	{"CCVEC_STORAGE_ACCESS_KEY", str(func(c *Config) *string { return &c.Storage.AccessKey })},
	{"CCVEC_STORAGE_SECRET_KEY", str(func(c *Config) *string { return &c.Storage.SecretKey })},
	{"CCVEC_STORAGE_COMMITS", str(func(c *Config) *string { return &c.Storage.Commits })},
	{"CCVEC_STORAGE_COMMIT_TABLE", str(func(c *Config) *string { return &c.Storage.CommitTable })},
	{"CCVEC_METADATA_BACKEND", str(func(c *Config) *string { return &c.Metadata.Backend })},
	{"CCVEC_METADATA_PATH", str(func(c *Config) *string { return &c.Metadata.Path })},
	{"CCVEC_METADATA_TABLE", str(func(c *Config) *string { return &c.Metadata.Table })},
	{"CCVEC_EMBEDDING_PROVIDER", str(func(c *Config) *string { return &c.Embedding.Provider })},
	{"CCVEC_EMBEDDING_MODEL_ID", str(func(c *Config) *string { return &c.Embedding.ModelID })},
	{"CCVEC_EMBEDDING_REGION", str(func(c *Config) *string { return &c.Embedding.Region })},
	{"CCVEC_INGEST_SOURCE_BUCKET", str(func(c *Config) *string { return &c.Ingest.SourceBucket })},
}

// ApplyEnv overrides cfg with CCVEC_* variables returned by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok {
			continue
		}
		if err := ev.set(cfg, strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ev.name, err))
		}
	}
	return errors.Join(errs...)
}
