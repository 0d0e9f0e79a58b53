package theme

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jun/repocms/internal/errors"
)

type fakeDynamo struct {
	items  map[string]map[string]types.AttributeValue
	getErr error
	putErr error
	puts   int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	key := in.Key["setting_key"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[aws.ToString(in.TableName)+"/"+key]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts++
	key := in.Item["setting_key"].(*types.AttributeValueMemberS).Value
	f.items[aws.ToString(in.TableName)+"/"+key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoStore_DefaultWhenUnset(t *testing.T) {
	s := NewDynamoStore(newFakeDynamo(), "settings")

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default, got)
}

func TestDynamoStore_SetThenGet(t *testing.T) {
	db := newFakeDynamo()
	s := NewDynamoStore(db, "settings")
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Set(context.Background(), "dark-mode", "alice"))

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dark-mode", got)

	item := db.items["settings/theme"]
	require.NotNil(t, item)
	assert.Equal(t, "alice", item["updated_by"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "2024-03-01T12:00:00Z", item["updated_at"].(*types.AttributeValueMemberS).Value)
}

func TestDynamoStore_RejectsInvalidName(t *testing.T) {
	db := newFakeDynamo()
	s := NewDynamoStore(db, "settings")

	for _, name := range []string{"", "Dark", "a b", "../x", "abcdefghijklmnopqrstuvwxyz0123456789"} {
		err := s.Set(context.Background(), name, "alice")
		assert.ErrorIs(t, err, apperrors.ErrBadRequest, name)
	}
	assert.Zero(t, db.puts)
}

func TestDynamoStore_StoredGarbageFallsBackToDefault(t *testing.T) {
	db := newFakeDynamo()
	db.items["settings/theme"] = map[string]types.AttributeValue{
		"setting_key": &types.AttributeValueMemberS{Value: "theme"},
		"value":       &types.AttributeValueMemberS{Value: "<script>"},
	}
	s := NewDynamoStore(db, "settings")

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default, got)
}

func TestDynamoStore_BackendErrorsAreUpstream(t *testing.T) {
	db := newFakeDynamo()
	db.getErr = errors.New("throttled")
	db.putErr = errors.New("throttled")
	s := NewDynamoStore(db, "settings")

	_, err := s.Get(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.ErrorIs(t, s.Set(context.Background(), "dark", "alice"), apperrors.ErrUpstream)
}
