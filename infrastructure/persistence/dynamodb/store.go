// Package dynamodb stores tree documents as single items in a DynamoDB table.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	pkgerrors "gentree/pkg/errors"
)

const (
	partitionKey = "PK"
	sortKey      = "SK"
	documentSK   = "DOCUMENT"
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// item is the stored record.
type item struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Value     []byte `dynamodbav:"Value"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// Store implements ports.KeyValueStore on DynamoDB.
type Store struct {
	client    Client
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewStore creates a store for tableName.
func NewStore(client Client, tableName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the value stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			partitionKey: &types.AttributeValueMemberS{Value: pkFor(key)},
			sortKey:      &types.AttributeValueMemberS{Value: documentSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify("get "+key, err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("key " + key)
	}

	var rec item
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, pkgerrors.NewDatabaseError("decode "+key, err)
	}
	return rec.Value, nil
}

// Set writes value under key, replacing any previous item
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	rec := item{
		PK:        pkFor(key),
		SK:        documentSK,
		Value:     value,
		UpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return pkgerrors.NewDatabaseError("encode "+key, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}); err != nil {
		return classify("put "+key, err)
	}
	s.logger.Debug("dynamodb item written",
		zap.String("table", s.tableName),
		zap.String("key", key),
		zap.Int("bytes", len(value)))
	return nil
}

// classify maps DynamoDB API failures onto the error taxonomy. Throttling
// and service outages are UNAVAILABLE so callers may retry; everything else
// is a DATABASE error tagged with the AWS error code.
func classify(operation string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.NewDatabaseError(operation, err)
	}

	switch code := apiErr.ErrorCode(); code {
	case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException", "ServiceUnavailable":
		return pkgerrors.NewUnavailableError("dynamodb").WithCode(code).WithCause(err)
	case "ResourceNotFoundException":
		return pkgerrors.NewDatabaseError(operation, err).WithCode("TABLE_NOT_FOUND")
	default:
		return pkgerrors.NewDatabaseError(operation, err).WithCode(code)
	}
}

func pkFor(key string) string {
	return fmt.Sprintf("KV#%s", key)
}
