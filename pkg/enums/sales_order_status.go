package enums

import "fmt"

// SalesOrderStatus tracks a sales order created from a converted quote.
type SalesOrderStatus string

const (
	SalesOrderStatusOpen         SalesOrderStatus = "open"
	SalesOrderStatusInProduction SalesOrderStatus = "in_production"
	SalesOrderStatusFulfilled    SalesOrderStatus = "fulfilled"
	SalesOrderStatusCancelled    SalesOrderStatus = "cancelled"
)

var validSalesOrderStatuses = []SalesOrderStatus{
	SalesOrderStatusOpen,
	SalesOrderStatusInProduction,
	SalesOrderStatusFulfilled,
	SalesOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s SalesOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SalesOrderStatus.
func (s SalesOrderStatus) IsValid() bool {
	for _, candidate := range validSalesOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSalesOrderStatus converts raw input into a SalesOrderStatus.
func ParseSalesOrderStatus(value string) (SalesOrderStatus, error) {
	for _, candidate := range validSalesOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sales order status %q", value)
}
