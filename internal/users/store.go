package users

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
	ErrEmailTaken = errors.New("email already in use")
	ErrNotFound   = errors.New("user not found")
)

// Store encapsulates operations on the users and user_emails tables.
type Store struct {
	client      aws.DynamoDBAPI
	tableName   string
	emailsTable string
	nowFunc     func() time.Time
}

func NewStore(client aws.DynamoDBAPI, tableName, emailsTable string) *Store {
	return &Store{
		client:      client,
		tableName:   tableName,
		emailsTable: emailsTable,
		nowFunc:     time.Now,
	}
}

// Create inserts the user and claims its email. Returns ErrEmailTaken on a duplicate email.
func (s *Store) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	now := s.nowFunc()
	u.CreatedAt = now
	u.UpdatedAt = now

	userMap, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	refMap, err := attributevalue.MarshalMap(emailRef{Email: u.Email, UserID: u.ID})
	if err != nil {
		return fmt.Errorf("marshal email ref: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           &s.emailsTable,
				Item:                refMap,
				ConditionExpression: awsString("attribute_not_exists(email)"),
			}},
			{Put: &types.Put{
				TableName:           &s.tableName,
				Item:                userMap,
				ConditionExpression: awsString("attribute_not_exists(user_id)"),
			}},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && failedAt(tce, 0) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Get fetches a user by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            userKey(id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var u User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

// GetByEmail fetches a user by email. Returns (nil, nil) if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.emailsTable,
		Key:            emailKey(NormalizeEmail(email)),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get email ref: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var ref emailRef
	if err := attributevalue.UnmarshalMap(out.Item, &ref); err != nil {
		return nil, fmt.Errorf("unmarshal email ref: %w", err)
	}
	return s.Get(ctx, ref.UserID)
}

// List returns every user.
func (s *Store) List(ctx context.Context) ([]User, error) {
	var (
		out   []User
		start map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Scan(ctx, &dyn.ScanInput{TableName: &s.tableName, ExclusiveStartKey: start})
		if err != nil {
			return nil, fmt.Errorf("scan users: %w", err)
		}
		var batch []User
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = page.LastEvaluatedKey
	}
}

// Save overwrites an existing user. When the email changed, the old claim is
// released and the new one taken in the same transaction.
func (s *Store) Save(ctx context.Context, u *User, previousEmail string) error {
	u.Email = NormalizeEmail(u.Email)
	previousEmail = NormalizeEmail(previousEmail)
	u.UpdatedAt = s.nowFunc()

	userMap, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	put := types.Put{
		TableName:           &s.tableName,
		Item:                userMap,
		ConditionExpression: awsString("attribute_exists(user_id)"),
	}

	if u.Email == previousEmail {
		_, err := s.client.PutItem(ctx, &dyn.PutItemInput{
			TableName:           put.TableName,
			Item:                put.Item,
			ConditionExpression: put.ConditionExpression,
		})
		if err != nil {
			var cf *types.ConditionalCheckFailedException
			if errors.As(err, &cf) {
				return ErrNotFound
			}
			return fmt.Errorf("put user: %w", err)
		}
		return nil
	}

	refMap, err := attributevalue.MarshalMap(emailRef{Email: u.Email, UserID: u.ID})
	if err != nil {
		return fmt.Errorf("marshal email ref: %w", err)
	}
	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           &s.emailsTable,
				Item:                refMap,
				ConditionExpression: awsString("attribute_not_exists(email)"),
			}},
			{Put: &put},
			{Delete: &types.Delete{TableName: &s.emailsTable, Key: emailKey(previousEmail)}},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if failedAt(tce, 0) {
				return ErrEmailTaken
			}
			if failedAt(tce, 1) {
				return ErrNotFound
			}
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// SetEmailVerified flips the verified flag without touching other attributes.
func (s *Store) SetEmailVerified(ctx context.Context, id string) error {
	return s.update(ctx, id, "SET email_verified = :v, updated_at = :ua", map[string]types.AttributeValue{
		":v": &types.AttributeValueMemberBOOL{Value: true},
	})
}

// SetPasswordHash replaces the stored bcrypt hash.
func (s *Store) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.update(ctx, id, "SET password_hash = :p, updated_at = :ua", map[string]types.AttributeValue{
		":p": &types.AttributeValueMemberS{Value: hash},
	})
}

func (s *Store) update(ctx context.Context, id, expr string, values map[string]types.AttributeValue) error {
	ua, err := attributevalue.Marshal(s.nowFunc())
	if err != nil {
		return fmt.Errorf("marshal updated_at: %w", err)
	}
	values[":ua"] = ua
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       userKey(id),
		UpdateExpression:          &expr,
		ConditionExpression:       awsString("attribute_exists(user_id)"),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return ErrNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Delete removes the user and its email claim. It reports false if the user did not exist.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}
	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:           &s.tableName,
				Key:                 userKey(id),
				ConditionExpression: awsString("attribute_exists(user_id)"),
			}},
			{Delete: &types.Delete{TableName: &s.emailsTable, Key: emailKey(u.Email)}},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return false, nil
		}
		return false, fmt.Errorf("delete user: %w", err)
	}
	return true, nil
}

func failedAt(tce *types.TransactionCanceledException, i int) bool {
	if i >= len(tce.CancellationReasons) {
		return false
	}
	code := tce.CancellationReasons[i].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

func userKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: id}}
}

func emailKey(email string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"email": &types.AttributeValueMemberS{Value: email}}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
