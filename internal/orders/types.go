package orders

import (
	"time"

	"github.com/imrishuroy/go-vinyl-storefront/internal/catalog"
)

// Order statuses
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusFailed    = "FAILED"
	StatusCanceled  = "CANCELED"
)

// ValidStatus reports whether s is one of the order statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// LineItem is one vinyl and quantity, with a snapshot of the vinyl taken when the order was built.
type LineItem struct {
	VinylID   string         `dynamodbav:"vinyl_id" json:"vinylId"`
	Quantity  int            `dynamodbav:"quantity" json:"quantity"`
	Title     string         `dynamodbav:"title,omitempty" json:"title,omitempty"`
	Artist    string         `dynamodbav:"artist,omitempty" json:"artist,omitempty"`
	Price     *catalog.Money `dynamodbav:"price,omitempty" json:"price,omitempty"`
	CoverPath string         `dynamodbav:"cover_path,omitempty" json:"coverPath,omitempty"`
}

// Snapshot copies the vinyl's display fields and price into the line item.
func (li *LineItem) Snapshot(v *catalog.Vinyl) {
	li.Title = v.Title
	li.Artist = v.Artist
	price := v.Price
	li.Price = &price
	li.CoverPath = v.CoverPath
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	ID               string     `dynamodbav:"order_id" json:"id"` // PK
	UserID           string     `dynamodbav:"user_id" json:"userId"`
	Items            []LineItem `dynamodbav:"items" json:"items"`
	Quantity         int        `dynamodbav:"qt" json:"qt"`
	PaymentID        string     `dynamodbav:"payment_id,omitempty" json:"paymentId,omitempty"`
	Status           string     `dynamodbav:"status" json:"orderStatus"`
	PaymentConfirmed bool       `dynamodbav:"payment_confirmed" json:"isPaymentConfirmed"`
	CreatedAt        time.Time  `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `dynamodbav:"updated_at" json:"updatedAt"`
}

// Normalize raises item quantities below 1 to 1 and recomputes the total.
// An order without items keeps whatever total it carries.
func (o *Order) Normalize() {
	if len(o.Items) == 0 {
		return
	}
	total := 0
	for i := range o.Items {
		if o.Items[i].Quantity < 1 {
			o.Items[i].Quantity = 1
		}
		total += o.Items[i].Quantity
	}
	o.Quantity = total
}

// paymentRef is the uniqueness row for a payment id in the payment refs table.
type paymentRef struct {
	PaymentID string    `dynamodbav:"payment_id"` // PK
	OrderID   string    `dynamodbav:"order_id"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}
