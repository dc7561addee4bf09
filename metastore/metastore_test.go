package metastore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ccvec/engine"
	"github.com/hupe1980/ccvec/model"
)

var (
	_ engine.MetadataStore = (*Memory)(nil)
	_ engine.MetadataStore = (*SQLite)(nil)
	_ engine.MetadataStore = (*DynamoDB)(nil)
)

func sample() model.Metadata {
	return model.Metadata{
		ID:         "t-1",
		BatchID:    "batch-7",
		EntityName: "Acme Telecom",
		Scenario:   "billing dispute",
		CSAT:       4.5,
		Resolved:   true,
		AHT:        320,
		Sentiment:  model.SentimentPositive,
		CustomerID: "c-9",
		AgentID:    "a-3",
		Timestamp:  "2025-01-02T03:04:05Z",
		SourceKey:  "transcripts/t-1.json",
		Fields:     map[string]any{"preview": "Hello, thanks for calling"},
	}
}

func testStore(t *testing.T, s engine.MetadataStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, sample()))

	got, ok, err := s.Get(ctx, "t-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample(), got)

	// Put replaces.
	upd := sample()
	upd.CSAT = 2
	upd.Resolved = false
	upd.Fields = nil
	require.NoError(t, s.Put(ctx, upd))

	got, ok, err = s.Get(ctx, "t-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, got.CSAT)
	assert.False(t, got.Resolved)
	assert.Empty(t, got.Fields)

	assert.ErrorIs(t, s.Put(ctx, model.Metadata{}), ErrEmptyID)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	testStore(t, m)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_IsolatesFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	md := sample()
	require.NoError(t, m.Put(ctx, md))
	md.Fields["preview"] = "changed"

	got, _, err := m.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello, thanks for calling", got.Fields["preview"])
}

func TestSQLite(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	testStore(t, s)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_InMemory(t *testing.T) {
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	testStore(t, s)
}

// fakeDDB is an in-memory DynamoDB table keyed by transcript_id.
type fakeDDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := in.Key["transcript_id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func (f *fakeDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := in.Item["transcript_id"].(*types.AttributeValueMemberS).Value
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoDB(t *testing.T) {
	ddb := newFakeDDB()
	s := NewDynamoDB(ddb, "", WithConsistentReads())
	testStore(t, s)

	item := ddb.items["t-1"]
	assert.IsType(t, &types.AttributeValueMemberN{}, item["csat"])
	assert.IsType(t, &types.AttributeValueMemberBOOL{}, item["fcr"])
	assert.Equal(t, DefaultTable, s.tableName)
}

func TestDynamoDB_Errors(t *testing.T) {
	ddb := newFakeDDB()
	s := NewDynamoDB(ddb, "tbl")
	ctx := context.Background()

	ddb.items["bad"] = map[string]types.AttributeValue{
		"transcript_id": &types.AttributeValueMemberS{Value: "bad"},
		"csat":          &types.AttributeValueMemberN{Value: "not-a-number"},
	}
	_, _, err := s.Get(ctx, "bad")
	assert.Error(t, err)

	boom := errors.New("throttled")
	ddb.err = boom
	_, _, err = s.Get(ctx, "t-1")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Put(ctx, sample()), boom)
}
