package minio

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ccvec/blobstore"
)

func TestStore_KeyMapping(t *testing.T) {
	s := NewStore(nil, "bucket", "vectors/")

	assert.Equal(t, "vectors/faiss/index.bin", s.key("faiss/index.bin"))
	assert.Equal(t, "faiss/index.bin", s.name("vectors/faiss/index.bin"))

	root := NewStore(nil, "bucket", "")
	assert.Equal(t, "faiss/index.bin", root.key("faiss/index.bin"))
	assert.Equal(t, "faiss/index.bin", root.name("faiss/index.bin"))
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}
	bucket := "test-ccvec"

	client, err := NewClient(Options{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	if _, err = client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "faiss/test.bin", data))

	got, err := blobstore.ReadAll(ctx, store, "faiss/test.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "faiss/")
	require.NoError(t, err)
	assert.Contains(t, names, "faiss/test.bin")

	require.NoError(t, store.Delete(ctx, "faiss/test.bin"))

	_, err = store.Open(ctx, "faiss/test.bin")
	assert.True(t, errors.Is(err, blobstore.ErrNotFound))
}
