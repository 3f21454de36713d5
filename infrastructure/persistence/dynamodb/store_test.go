package dynamodb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "gentree/pkg/errors"
)

// fakeClient keeps items keyed by PK/SK.
type fakeClient struct {
	mu     sync.Mutex
	items  map[string]map[string]types.AttributeValue
	getErr error
	putErr error
	tables []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(k map[string]types.AttributeValue) string {
	pk := k["PK"].(*types.AttributeValueMemberS).Value
	sk := k["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.tables = append(f.tables, aws.ToString(in.TableName))
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.tables = append(f.tables, aws.ToString(in.TableName))
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := NewStore(client, "gentree", nil)
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	_, err := s.Get(ctx, "gentree:tree")
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, s.Set(ctx, "gentree:tree", []byte(`{"persons":[]}`)))
	got, err := s.Get(ctx, "gentree:tree")
	require.NoError(t, err)
	assert.Equal(t, `{"persons":[]}`, string(got))

	stored := client.items["KV#gentree:tree|DOCUMENT"]
	require.NotNil(t, stored)
	assert.Equal(t, "2024-01-02T03:04:05Z", stored["UpdatedAt"].(*types.AttributeValueMemberS).Value)
	for _, table := range client.tables {
		assert.Equal(t, "gentree", table)
	}
}

func TestStore_PutError(t *testing.T) {
	client := newFakeClient()
	client.putErr = errors.New("throttled")
	s := NewStore(client, "gentree", nil)

	err := s.Set(context.Background(), "k", []byte("v"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
	assert.ErrorIs(t, err, client.putErr)
}

func TestStore_ClassifiesAPIErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType pkgerrors.ErrorType
		code    string
	}{
		{"throttled", &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"}, pkgerrors.ErrorTypeUnavailable, "ProvisionedThroughputExceededException"},
		{"request limit", &smithy.GenericAPIError{Code: "RequestLimitExceeded"}, pkgerrors.ErrorTypeUnavailable, "RequestLimitExceeded"},
		{"missing table", &types.ResourceNotFoundException{Message: aws.String("no table")}, pkgerrors.ErrorTypeDatabase, "TABLE_NOT_FOUND"},
		{"validation", &smithy.GenericAPIError{Code: "ValidationException"}, pkgerrors.ErrorTypeDatabase, "ValidationException"},
		{"transport", errors.New("connection reset"), pkgerrors.ErrorTypeDatabase, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			client.getErr = tt.err
			client.putErr = tt.err
			s := NewStore(client, "gentree", nil)

			_, err := s.Get(context.Background(), "k")
			require.Error(t, err)
			assert.True(t, pkgerrors.IsType(err, tt.errType))
			assert.Equal(t, tt.code, pkgerrors.GetAppError(err).Code)
			assert.ErrorIs(t, err, tt.err)

			err = s.Set(context.Background(), "k", []byte("v"))
			assert.True(t, pkgerrors.IsType(err, tt.errType))
		})
	}
}
