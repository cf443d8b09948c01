package payment

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("order not found for payment")
	ErrProductNotFound = errors.New("product not found")
)

// OutOfStockError names the first line item whose vinyl cannot cover the
// ordered quantity.
type OutOfStockError struct {
	VinylID   string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock: vinyl %s (requested %d, available %d)", e.VinylID, e.Requested, e.Available)
}
