package catalog

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Money is a decimal amount. It is a JSON number and a DynamoDB N attribute,
// so prices never pass through float64.
type Money struct {
	decimal.Decimal
}

func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{d}, nil
}

func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both 12.5 and "12.5".
func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Decimal.UnmarshalJSON(b)
}

func (m Money) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: m.String()}, nil
}

func (m *Money) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		d, err := decimal.NewFromString(v.Value)
		if err != nil {
			return fmt.Errorf("money attribute: %w", err)
		}
		m.Decimal = d
	case *types.AttributeValueMemberNULL:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("money attribute: unexpected type %T", av)
	}
	return nil
}
