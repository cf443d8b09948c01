// Package verification issues single-use tokens for email confirmation and
// password reset, and mails the links that carry them.
package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-vinyl-storefront/internal/aws"
)

// Token purposes
const (
	PurposeVerifyEmail   = "VERIFY_EMAIL"
	PurposePasswordReset = "PASSWORD_RESET"
)

// Token is the item stored in the tokens DynamoDB table.
type Token struct {
	Token     string    `dynamodbav:"token"` // PK
	UserID    string    `dynamodbav:"user_id"`
	Purpose   string    `dynamodbav:"purpose"`
	ExpiresAt time.Time `dynamodbav:"expires_at_time"`
	TTL       int64     `dynamodbav:"expires_at"` // DynamoDB TTL, epoch seconds
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// Expired reports whether the token is past its expiry at now.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Store encapsulates operations on the tokens table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	userIndex string
}

func NewStore(client aws.DynamoDBAPI, tableName, userIndex string) *Store {
	return &Store{client: client, tableName: tableName, userIndex: userIndex}
}

func (s *Store) Put(ctx context.Context, t *Token) error {
	t.TTL = t.ExpiresAt.Unix()
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(#t)"),
		ExpressionAttributeNames: map[string]string{
			"#t": "token",
		},
	})
	if err != nil {
		return fmt.Errorf("put token: %w", err)
	}
	return nil
}

// Get fetches a token. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, token string) (*Token, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            tokenKey(token),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var t Token
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &t, nil
}

func (s *Store) Delete(ctx context.Context, token string) error {
	if _, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{TableName: &s.tableName, Key: tokenKey(token)}); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// DeleteForUser removes every token of the given purpose held by userID.
func (s *Store) DeleteForUser(ctx context.Context, userID, purpose string) error {
	var (
		ids   []string
		start map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:                &s.tableName,
			IndexName:                &s.userIndex,
			KeyConditionExpression:   awsString("#k = :v"),
			ExpressionAttributeNames: map[string]string{"#k": "user_id"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberS{Value: userID},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return fmt.Errorf("query tokens: %w", err)
		}
		var batch []Token
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return fmt.Errorf("unmarshal tokens: %w", err)
		}
		for _, t := range batch {
			if t.Purpose == purpose {
				ids = append(ids, t.Token)
			}
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}

	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func tokenKey(token string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"token": &types.AttributeValueMemberS{Value: token}}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
