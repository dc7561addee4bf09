package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/ccvec/blobstore"
)

// DDBCommitStore implements blobstore.CommitStore with DynamoDB conditional
// writes, providing the atomic compare-and-swap semantics that S3 lacks.
// This enables safe concurrent writers.
//
// Every commit is a new item; its conditional put only succeeds if no item
// with the same version exists yet.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 prefix/path
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name ccvec-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	ddbClient DDBClient
	tableName string
	baseURI   string // S3 bucket/prefix used as partition key
	now       func() time.Time
}

// Compile time check to ensure DDBCommitStore satisfies the CommitStore interface.
var _ blobstore.CommitStore = (*DDBCommitStore)(nil)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// NewDDBCommitStore creates a new DynamoDB commit store.
// The baseURI should be "s3://bucket/prefix" format used as partition key.
func NewDDBCommitStore(ddbClient DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
		now:       time.Now,
	}
}

// Latest queries DynamoDB for the latest committed version.
func (s *DDBCommitStore) Latest(ctx context.Context) (blobstore.Commit, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return blobstore.Commit{}, fmt.Errorf("failed to query DynamoDB: %w", err)
	}

	if len(resp.Items) == 0 {
		return blobstore.Commit{}, nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return blobstore.Commit{}, errors.New("invalid version attribute in DynamoDB")
	}
	manifestAttr, ok := item["manifest"].(*types.AttributeValueMemberB)
	if !ok {
		return blobstore.Commit{}, errors.New("invalid manifest attribute in DynamoDB")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return blobstore.Commit{}, fmt.Errorf("failed to parse version: %w", err)
	}

	return blobstore.Commit{Version: version, Manifest: manifestAttr.Value}, nil
}

// Commit atomically commits a new manifest version using DynamoDB conditional write.
func (s *DDBCommitStore) Commit(ctx context.Context, expected uint64, manifest []byte) (uint64, error) {
	newVersion := expected + 1

	// Conditional put: only succeed if this version doesn't exist yet
	_, err := s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":     &types.AttributeValueMemberS{Value: s.baseURI},
			"version":      &types.AttributeValueMemberN{Value: strconv.FormatUint(newVersion, 10)},
			"manifest":     &types.AttributeValueMemberB{Value: manifest},
			"committed_at": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})

	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, blobstore.ErrConcurrentModification
		}
		return 0, fmt.Errorf("failed to commit version to DynamoDB: %w", err)
	}

	return newVersion, nil
}
