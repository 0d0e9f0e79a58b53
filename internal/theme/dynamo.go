package theme

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	apperrors "github.com/jun/repocms/internal/errors"
	"github.com/jun/repocms/internal/model"
)

const settingKey = "theme"

// DynamoAPI is the subset of *dynamodb.Client methods used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps the theme in a settings table keyed by setting_key.
type DynamoStore struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

// NewDynamoStore creates a DynamoStore on table.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table, now: time.Now}
}

func (s *DynamoStore) Get(ctx context.Context) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"setting_key": &types.AttributeValueMemberS{Value: settingKey},
		},
	})
	if err != nil {
		return "", apperrors.Upstream(err, "get theme")
	}
	if out.Item == nil {
		return Default, nil
	}

	var setting model.ThemeSetting
	if err := attributevalue.UnmarshalMap(out.Item, &setting); err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "unmarshal theme")
	}
	if !Valid(setting.Value) {
		return Default, nil
	}
	return setting.Value, nil
}

func (s *DynamoStore) Set(ctx context.Context, name, updatedBy string) error {
	if !Valid(name) {
		return apperrors.Wrap(apperrors.KindBadRequest, errInvalid(name), "invalid theme")
	}
	item, err := attributevalue.MarshalMap(model.ThemeSetting{
		Key:       settingKey,
		Value:     name,
		UpdatedBy: updatedBy,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, err, "marshal theme")
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return apperrors.Upstream(err, "put theme")
	}
	return nil
}
