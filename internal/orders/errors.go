package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInventoryNotFound = errors.New("inventory not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// StockError identifies the product a decrement failed on.
// Err is ErrInventoryNotFound or ErrInsufficientStock.
type StockError struct {
	ProductID int64
	Requested int
	Available int
	Err       error
}

func (e *StockError) Error() string {
	if errors.Is(e.Err, ErrInventoryNotFound) {
		return fmt.Sprintf("inventory not found for product %d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return e.Err }

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidInventory = errors.New("invalid inventory record")
)
