package metastore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/ccvec/codec"
	"github.com/hupe1980/ccvec/model"
)

// DefaultTable is the table name used by the transcript pipeline.
const DefaultTable = "ContactCenterTranscripts"

// DDBClient is the subset of the DynamoDB API used by DynamoDB.
type DDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDB stores one item per record.
//
// Table schema:
//   - Partition key: transcript_id (string)
//
// Numeric attributes are stored as N, the resolution flag as BOOL and
// passthrough fields as a JSON string.
type DynamoDB struct {
	client     DDBClient
	tableName  string
	consistent bool
}

// DynamoDBOption configures a DynamoDB store.
type DynamoDBOption func(*DynamoDB)

// WithConsistentReads enables strongly consistent GetItem calls.
func WithConsistentReads() DynamoDBOption {
	return func(d *DynamoDB) { d.consistent = true }
}

// NewDynamoDB creates a DynamoDB-backed metadata store.
func NewDynamoDB(client DDBClient, tableName string, opts ...DynamoDBOption) *DynamoDB {
	if tableName == "" {
		tableName = DefaultTable
	}
	d := &DynamoDB{client: client, tableName: tableName}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Get fetches the item keyed by id.
func (d *DynamoDB) Get(ctx context.Context, id model.RecordID) (model.Metadata, bool, error) {
	resp, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"transcript_id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(d.consistent),
	})
	if err != nil {
		return model.Metadata{}, false, fmt.Errorf("metastore: get %s: %w", id, err)
	}
	if len(resp.Item) == 0 {
		return model.Metadata{}, false, nil
	}

	md, err := decodeItem(resp.Item)
	if err != nil {
		return model.Metadata{}, false, fmt.Errorf("metastore: decode %s: %w", id, err)
	}
	return md, true, nil
}

// Put writes md, replacing any existing item.
func (d *DynamoDB) Put(ctx context.Context, md model.Metadata) error {
	if md.ID == "" {
		return ErrEmptyID
	}

	item, err := encodeItem(md)
	if err != nil {
		return err
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("metastore: put %s: %w", md.ID, err)
	}
	return nil
}

func encodeItem(md model.Metadata) (map[string]types.AttributeValue, error) {
	item := map[string]types.AttributeValue{
		"transcript_id": &types.AttributeValueMemberS{Value: md.ID},
		"csat":          &types.AttributeValueMemberN{Value: strconv.FormatFloat(md.CSAT, 'f', -1, 64)},
		"fcr":           &types.AttributeValueMemberBOOL{Value: md.Resolved},
		"aht":           &types.AttributeValueMemberN{Value: strconv.Itoa(md.AHT)},
	}

	strs := map[string]string{
		"batch_id":    md.BatchID,
		"entity_name": md.EntityName,
		"scenario":    md.Scenario,
		"sentiment":   string(md.Sentiment),
		"customer_id": md.CustomerID,
		"agent_id":    md.AgentID,
		"timestamp":   md.Timestamp,
		"s3_key":      md.SourceKey,
	}
	for k, v := range strs {
		// Empty strings are omitted.
		if v != "" {
			item[k] = &types.AttributeValueMemberS{Value: v}
		}
	}

	if len(md.Fields) > 0 {
		b, err := codec.Default.Marshal(md.Fields)
		if err != nil {
			return nil, fmt.Errorf("metastore: encode fields of %s: %w", md.ID, err)
		}
		item["fields"] = &types.AttributeValueMemberS{Value: string(b)}
	}
	return item, nil
}

func decodeItem(item map[string]types.AttributeValue) (model.Metadata, error) {
	var md model.Metadata

	str := func(name string) string {
		if v, ok := item[name].(*types.AttributeValueMemberS); ok {
			return v.Value
		}
		return ""
	}

	md.ID = str("transcript_id")
	md.BatchID = str("batch_id")
	md.EntityName = str("entity_name")
	md.Scenario = str("scenario")
	md.Sentiment = model.Sentiment(str("sentiment"))
	md.CustomerID = str("customer_id")
	md.AgentID = str("agent_id")
	md.Timestamp = str("timestamp")
	md.SourceKey = str("s3_key")

	if v, ok := item["csat"].(*types.AttributeValueMemberN); ok {
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return md, fmt.Errorf("csat: %w", err)
		}
		md.CSAT = f
	}
	if v, ok := item["aht"].(*types.AttributeValueMemberN); ok {
		n, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return md, fmt.Errorf("aht: %w", err)
		}
		md.AHT = int(n)
	}
	if v, ok := item["fcr"].(*types.AttributeValueMemberBOOL); ok {
		md.Resolved = v.Value
	}

	if raw := str("fields"); raw != "" {
		if err := codec.Default.Unmarshal([]byte(raw), &md.Fields); err != nil {
			return md, fmt.Errorf("fields: %w", err)
		}
	}
	return md, nil
}
