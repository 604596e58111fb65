package cart

import (
	"errors"
	"fmt"
)

// ErrItemUnavailable is matched by *UnavailableError.
var ErrItemUnavailable = errors.New("item is currently unavailable")

// UnavailableError reports an add of an item that is switched off or out of
// stock.
type UnavailableError struct {
	Name string
}

func (e *UnavailableError) Error() string {
	return e.Name + " is currently unavailable"
}

func (e *UnavailableError) Unwrap() error { return ErrItemUnavailable }

// StockLimitError reports a quantity above the stock ceiling known for the
// item. Available is that ceiling.
type StockLimitError struct {
	Name      string
	Available int
}

func (e *StockLimitError) Error() string {
	return fmt.Sprintf("Only %d %s(s) available", e.Available, e.Name)
}

// IsNotice reports whether err is a guard failure meant to be shown to the
// shopper as-is. Such failures never change the cart.
func IsNotice(err error) bool {
	var unavailable *UnavailableError
	var limit *StockLimitError
	return errors.As(err, &unavailable) || errors.As(err, &limit)
}
