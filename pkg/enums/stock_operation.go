package enums

import "fmt"

// StockOperation maps to the stock_operation enum in Postgres. RESERVE and
// RELEASE entries never change the physical stock count; DECREMENT and
// INCREMENT always do.
type StockOperation string

const (
	StockOperationReserve   StockOperation = "reserve"
	StockOperationRelease   StockOperation = "release"
	StockOperationDecrement StockOperation = "decrement"
	StockOperationIncrement StockOperation = "increment"
)

var validStockOperations = []StockOperation{
	StockOperationReserve,
	StockOperationRelease,
	StockOperationDecrement,
	StockOperationIncrement,
}

// String implements fmt.Stringer.
func (o StockOperation) String() string {
	return string(o)
}

// IsValid reports whether the value is a known StockOperation.
func (o StockOperation) IsValid() bool {
	for _, candidate := range validStockOperations {
		if candidate == o {
			return true
		}
	}
	return false
}

// MutatesStock reports whether the operation changes the stored quantity.
func (o StockOperation) MutatesStock() bool {
	return o == StockOperationDecrement || o == StockOperationIncrement
}

// ParseStockOperation converts raw input into a StockOperation.
func ParseStockOperation(value string) (StockOperation, error) {
	for _, candidate := range validStockOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock operation %q", value)
}
