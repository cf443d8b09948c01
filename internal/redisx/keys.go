package redisx

import "fmt"

const (
	// cart:{user_id} -> hash vinyl_id -> quantity
	keyCart = "cart:%s"

	// checkout:{payment_id}:marker -> "1" while a payment approval owns the id
	keyApprovalMarker = "checkout:%s:marker"

	// checkout:{payment_id}:create -> "1" while a checkout is building the order
	keyCheckoutMarker = "checkout:%s:create"
)

func CartKey(userID string) string { return fmt.Sprintf(keyCart, userID) }

func ApprovalMarkerKey(paymentID string) string { return fmt.Sprintf(keyApprovalMarker, paymentID) }

func CheckoutMarkerKey(paymentID string) string { return fmt.Sprintf(keyCheckoutMarker, paymentID) }
