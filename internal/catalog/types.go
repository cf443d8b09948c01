// Package catalog stores vinyl records and their stock counts.
package catalog

import "time"

// Vinyl is the item stored in the vinyls DynamoDB table.
type Vinyl struct {
	ID        string    `dynamodbav:"vinyl_id" json:"id"` // PK
	Title     string    `dynamodbav:"title" json:"title"`
	Artist    string    `dynamodbav:"artist" json:"artist"`
	Price     Money     `dynamodbav:"price" json:"price"`
	Stock     int       `dynamodbav:"stock" json:"stock"`
	CoverPath string    `dynamodbav:"cover_path,omitempty" json:"coverPath,omitempty"`
	Gallery   []string  `dynamodbav:"gallery,omitempty" json:"gallery,omitempty"`
	Principal bool      `dynamodbav:"principal" json:"isPrincipal"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}
