package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
index:
  dimension: 16
  backend: bruteforce
  prune:
    schedule: "@every 1h"
storage:
  backend: s3
  bucket: transcripts
metadata:
  backend: dynamodb
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Index.Dimension)
	assert.Equal(t, "bruteforce", cfg.Index.Backend)
	assert.Equal(t, "@every 1h", cfg.Index.Prune.Schedule)
	assert.Equal(t, 3, cfg.Index.Prune.Keep)
	assert.Equal(t, "dynamodb", cfg.Storage.Commits)
	assert.Equal(t, "ccvec-commits", cfg.Storage.CommitTable)
	assert.Equal(t, "ContactCenterTranscripts", cfg.Metadata.Table)
	assert.True(t, cfg.Ingest.UsePrecomputedOrDefault())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 768, cfg.Index.Dimension)
	assert.Equal(t, "ann", cfg.Index.Backend)
	assert.Equal(t, "flat", cfg.Index.Kind)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "local", cfg.Storage.Commits)
	assert.Equal(t, "./data", cfg.Storage.Path)
	assert.Equal(t, "sqlite", cfg.Metadata.Backend)
	assert.Equal(t, "titan", cfg.Embedding.Provider)
	assert.Equal(t, uint64(10), cfg.Index.MaxRetries)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "index: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `
index:
  dimension: -1
  backend: faiss
storage:
  backend: minio
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.dimension")
	assert.Contains(t, err.Error(), "index.backend")
	assert.Contains(t, err.Error(), "storage.bucket")
	assert.Contains(t, err.Error(), "storage.endpoint")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CCVEC_SERVER_PORT":       "7000",
		"CCVEC_INDEX_BACKEND":     "bruteforce",
		"CCVEC_INDEX_RAW_VECTORS": "true",
		"CCVEC_STORAGE_BUCKET":    " bucket ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Config{Server: ServerConfig{Port: 1}}
	require.NoError(t, ApplyEnv(&cfg, lookup))
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "bruteforce", cfg.Index.Backend)
	assert.True(t, cfg.Index.RawVectors)
	assert.Equal(t, "bucket", cfg.Storage.Bucket)

	env["CCVEC_SERVER_PORT"] = "seven"
	err := ApplyEnv(&cfg, lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CCVEC_SERVER_PORT")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CCVEC_INDEX_DIMENSION", "32")
	cfg, err := Load(writeConfig(t, "index:\n  dimension: 16\n"))
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Index.Dimension)
}
