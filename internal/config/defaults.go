package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxK == 0 {
		cfg.Server.MaxK = 100
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = 768
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "ann"
	}
	if cfg.Index.Kind == "" {
		cfg.Index.Kind = "flat"
	}
	if cfg.Index.Compression == "" {
		cfg.Index.Compression = "none"
	}
	if cfg.Index.Lock == "" {
		cfg.Index.Lock = "none"
	}
	if cfg.Index.Lock == "file" && cfg.Index.LockPath == "" {
		cfg.Index.LockPath = "ccvec.lock"
	}
	if cfg.Index.MaxRetries == 0 {
		cfg.Index.MaxRetries = 10
	}
	if cfg.Index.Oversample == 0 {
		cfg.Index.Oversample = 3
	}
	if cfg.Index.Concurrency == 0 {
		cfg.Index.Concurrency = 8
	}
	if cfg.Index.Prune.Keep == 0 {
		cfg.Index.Prune.Keep = 3
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Backend == "local" && cfg.Storage.Path == "" {
		cfg.Storage.Path = "./data"
	}
	if cfg.Storage.Commits == "" {
		switch cfg.Storage.Backend {
		case "memory":
			cfg.Storage.Commits = "memory"
		case "s3", "minio":
			cfg.Storage.Commits = "dynamodb"
		default:
			cfg.Storage.Commits = "local"
		}
	}
	if cfg.Storage.Commits == "dynamodb" && cfg.Storage.CommitTable == "" {
		cfg.Storage.CommitTable = "ccvec-commits"
	}
	if cfg.Metadata.Backend == "" {
		cfg.Metadata.Backend = "sqlite"
	}
	if cfg.Metadata.Backend == "sqlite" && cfg.Metadata.Path == "" {
		cfg.Metadata.Path = "./data/metadata.db"
	}
	if cfg.Metadata.Backend == "dynamodb" && cfg.Metadata.Table == "" {
		cfg.Metadata.Table = "ContactCenterTranscripts"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "titan"
	}
	if cfg.Embedding.ModelID == "" {
		cfg.Embedding.ModelID = "amazon.titan-embed-text-v2:0"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Embedding.RateLimit > 0 && cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 1
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
}
