package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-vinyl-storefront/internal/aws"
)

// DynamoMarker implements Marker on a DynamoDB table whose TTL attribute is expires_at.
type DynamoMarker struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewDynamoMarker returns a marker store bound to tableName.
func NewDynamoMarker(client aws.DynamoDBAPI, tableName string) *DynamoMarker {
	return &DynamoMarker{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Acquire puts the marker if it is absent or already past expires_at.
// DynamoDB deletes expired items lazily, so the condition cannot rely on
// attribute_not_exists alone.
func (m *DynamoMarker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := m.nowFunc()
	rec := MarkerRecord{
		Key:       key,
		Value:     "1",
		CreatedAt: now,
		ExpiresAt: now.Add(ttl).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal marker: %w", err)
	}

	_, err = m.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                &m.tableName,
		Item:                     item,
		ConditionExpression:      awsString("attribute_not_exists(marker_key) OR #exp < :now"),
		ExpressionAttributeNames: map[string]string{"#exp": "expires_at"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put marker: %w", err)
	}
	return true, nil
}

func (m *DynamoMarker) Release(ctx context.Context, key string) error {
	_, err := m.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &m.tableName,
		Key: map[string]types.AttributeValue{
			"marker_key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("delete marker: %w", err)
	}
	return nil
}

// get reads a marker by key. If not found, returns (nil, nil).
func (m *DynamoMarker) get(ctx context.Context, key string) (*MarkerRecord, error) {
	out, err := m.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &m.tableName,
		Key: map[string]types.AttributeValue{
			"marker_key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get marker: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec MarkerRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal marker: %w", err)
	}
	return &rec, nil
}

func awsString(s string) *string { return &s }
