// Package idempotency provides the set-if-absent markers that keep a payment
// id from being processed twice.
package idempotency

import (
	"context"
	"time"
)

// Marker is a distributed set-if-absent flag with a TTL.
type Marker interface {
	// Acquire creates key unless it already exists and has not expired.
	// It reports true when this caller created the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release deletes key. Releasing a missing key is not an error.
	Release(ctx context.Context, key string) error
}

// MarkerRecord is the shape persisted in the markers DynamoDB table.
type MarkerRecord struct {
	Key       string    `dynamodbav:"marker_key"` // PK
	Value     string    `dynamodbav:"value"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	ExpiresAt int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}
