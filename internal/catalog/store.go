package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-vinyl-storefront/internal/aws"
)

// ErrExists is returned by Create when the id is already taken.
var ErrExists = errors.New("vinyl already exists")

// Store encapsulates operations on the vinyls table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches a vinyl by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Vinyl, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get vinyl: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var v Vinyl
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, fmt.Errorf("unmarshal vinyl: %w", err)
	}
	return &v, nil
}

// List returns every vinyl in the table.
func (s *Store) List(ctx context.Context) ([]Vinyl, error) {
	var (
		out   []Vinyl
		start map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan vinyls: %w", err)
		}
		var batch []Vinyl
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal vinyls: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = page.LastEvaluatedKey
	}
}

// Search returns vinyls whose title or artist contains term, ignoring case.
// DynamoDB's contains() is case-sensitive, so matching happens after the scan.
func (s *Store) Search(ctx context.Context, term string) ([]Vinyl, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]Vinyl, 0, len(all))
	for _, v := range all {
		if strings.Contains(strings.ToLower(v.Title), needle) || strings.Contains(strings.ToLower(v.Artist), needle) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Create assigns an id when empty, stamps timestamps and inserts the vinyl.
func (s *Store) Create(ctx context.Context, v *Vinyl) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := s.nowFunc()
	v.CreatedAt = now
	v.UpdatedAt = now

	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal vinyl: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(vinyl_id)"),
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return ErrExists
		}
		return fmt.Errorf("put vinyl: %w", err)
	}
	return nil
}

// Save overwrites the stored vinyl with v as given. Callers own UpdatedAt.
func (s *Store) Save(ctx context.Context, v *Vinyl) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal vinyl: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return fmt.Errorf("put vinyl: %w", err)
	}
	return nil
}

// Delete removes a vinyl and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 key(id),
		ConditionExpression: awsString("attribute_exists(vinyl_id)"),
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return false, nil
		}
		return false, fmt.Errorf("delete vinyl: %w", err)
	}
	return true, nil
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"vinyl_id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
