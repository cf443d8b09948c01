package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-vinyl-storefront/internal/aws"
)

var (
	// ErrPaymentIDTaken is returned when another order already holds the payment id.
	ErrPaymentIDTaken = errors.New("payment id already used by another order")
	// ErrExists is returned by Create when the order id is taken.
	ErrExists = errors.New("order already exists")
	// ErrNotFound is returned by Save when the order no longer exists.
	ErrNotFound = errors.New("order not found")
)

// Store encapsulates operations on the orders table and its payment refs table.
// The refs table maps payment_id -> order_id and is what makes a payment id unique.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	refsTable string
	userIndex string
	nowFunc   func() time.Time
	newIDFunc func() string
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName, refsTable, userIndex string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		refsTable: refsTable,
		userIndex: userIndex,
		nowFunc:   time.Now,
		newIDFunc: uuid.NewString,
	}
}

// Create assigns an id and timestamps, normalizes the items and writes the
// order. When the order carries a payment id, the order and its ref are written
// in one TransactWriteItems call so two orders can never share a payment id.
func (s *Store) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = s.newIDFunc()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	now := s.nowFunc()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	o.Normalize()

	orderMap, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	if o.PaymentID == "" {
		_, err := s.client.PutItem(ctx, &dyn.PutItemInput{
			TableName:           &s.tableName,
			Item:                orderMap,
			ConditionExpression: awsString("attribute_not_exists(order_id)"),
		})
		if err != nil {
			var cf *types.ConditionalCheckFailedException
			if errors.As(err, &cf) {
				return ErrExists
			}
			return fmt.Errorf("put order: %w", err)
		}
		return nil
	}

	refMap, err := attributevalue.MarshalMap(paymentRef{PaymentID: o.PaymentID, OrderID: o.ID, CreatedAt: now})
	if err != nil {
		return fmt.Errorf("marshal payment ref: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: awsString("attribute_not_exists(order_id)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.refsTable,
					Item:                refMap,
					ConditionExpression: awsString("attribute_not_exists(payment_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			reasons := tce.CancellationReasons
			if len(reasons) > 1 && awsToString(reasons[1].Code) == "ConditionalCheckFailed" {
				return ErrPaymentIDTaken
			}
			if len(reasons) > 0 && awsToString(reasons[0].Code) == "ConditionalCheckFailed" {
				return ErrExists
			}
			return fmt.Errorf("transaction canceled: %w", err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// GetByPaymentID resolves the payment ref, then the order. Returns (nil, nil) if either is missing.
func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.refsTable,
		Key: map[string]types.AttributeValue{
			"payment_id": &types.AttributeValueMemberS{Value: paymentID},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get payment ref: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var ref paymentRef
	if err := attributevalue.UnmarshalMap(out.Item, &ref); err != nil {
		return nil, fmt.Errorf("unmarshal payment ref: %w", err)
	}
	return s.Get(ctx, ref.OrderID)
}

// ListByUser queries the user index.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	var (
		out   []Order
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
			return nil, fmt.Errorf("query orders by user: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = page.LastEvaluatedKey
	}
}

// List returns every order.
func (s *Store) List(ctx context.Context) ([]Order, error) {
	var (
		out   []Order
		start map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = page.LastEvaluatedKey
	}
}

// Save overwrites an existing order. The payment id is not re-indexed, so
// callers must not change it. Returns ErrNotFound if the order was deleted.
func (s *Store) Save(ctx context.Context, o *Order) error {
	o.Normalize()
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_exists(order_id)"),
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return ErrNotFound
		}
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// Delete removes the order and its payment ref. It reports false if the order did not exist.
func (s *Store) Delete(ctx context.Context, orderID string) (bool, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o == nil {
		return false, nil
	}

	items := []types.TransactWriteItem{
		{
			Delete: &types.Delete{
				TableName:           &s.tableName,
				Key:                 orderKey(orderID),
				ConditionExpression: awsString("attribute_exists(order_id)"),
			},
		},
	}
	if o.PaymentID != "" {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: &s.refsTable,
				Key: map[string]types.AttributeValue{
					"payment_id": &types.AttributeValueMemberS{Value: o.PaymentID},
				},
			},
		})
	}

	if _, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items}); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return false, nil
		}
		return false, fmt.Errorf("transact delete: %w", err)
	}
	return true, nil
}

func orderKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }

func awsToString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
