package enums

import "fmt"

// PurchaseOrderStatus tracks a purchase order with a supplier.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft     PurchaseOrderStatus = "draft"
	PurchaseOrderStatusOrdered   PurchaseOrderStatus = "ordered"
	PurchaseOrderStatusShipped   PurchaseOrderStatus = "shipped"
	PurchaseOrderStatusReceived  PurchaseOrderStatus = "received"
	PurchaseOrderStatusClosed    PurchaseOrderStatus = "closed"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "cancelled"
)

var validPurchaseOrderStatuses = []PurchaseOrderStatus{
	PurchaseOrderStatusDraft,
	PurchaseOrderStatusOrdered,
	PurchaseOrderStatusShipped,
	PurchaseOrderStatusReceived,
	PurchaseOrderStatusClosed,
	PurchaseOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (p PurchaseOrderStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PurchaseOrderStatus.
func (p PurchaseOrderStatus) IsValid() bool {
	for _, candidate := range validPurchaseOrderStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePurchaseOrderStatus converts raw input into a PurchaseOrderStatus.
func ParsePurchaseOrderStatus(value string) (PurchaseOrderStatus, error) {
	for _, candidate := range validPurchaseOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase order status %q", value)
}

// IsOpenSupply reports whether lines on the order still count as incoming supply.
func (p PurchaseOrderStatus) IsOpenSupply() bool {
	return p == PurchaseOrderStatusOrdered || p == PurchaseOrderStatusShipped
}

// PurchaseOrderAction is a transition request against a purchase order.
type PurchaseOrderAction string

const (
	PurchaseOrderActionPlace   PurchaseOrderAction = "place"
	PurchaseOrderActionShip    PurchaseOrderAction = "ship"
	PurchaseOrderActionReceive PurchaseOrderAction = "receive"
	PurchaseOrderActionClose   PurchaseOrderAction = "close"
	PurchaseOrderActionCancel  PurchaseOrderAction = "cancel"
)

func ParsePurchaseOrderAction(value string) (PurchaseOrderAction, error) {
	switch a := PurchaseOrderAction(value); a {
	case PurchaseOrderActionPlace, PurchaseOrderActionShip, PurchaseOrderActionReceive,
		PurchaseOrderActionClose, PurchaseOrderActionCancel:
		return a, nil
	}
	return "", fmt.Errorf("invalid purchase order action %q", value)
}
