package enums

import "fmt"

// ProductionOrderStatus tracks a production order on the shop floor.
type ProductionOrderStatus string

const (
	ProductionOrderStatusDraft      ProductionOrderStatus = "draft"
	ProductionOrderStatusReleased   ProductionOrderStatus = "released"
	ProductionOrderStatusInProgress ProductionOrderStatus = "in_progress"
	ProductionOrderStatusComplete   ProductionOrderStatus = "complete"
	ProductionOrderStatusScrapped   ProductionOrderStatus = "scrapped"
)

var validProductionOrderStatuses = []ProductionOrderStatus{
	ProductionOrderStatusDraft,
	ProductionOrderStatusReleased,
	ProductionOrderStatusInProgress,
	ProductionOrderStatusComplete,
	ProductionOrderStatusScrapped,
}

// String implements fmt.Stringer.
func (p ProductionOrderStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductionOrderStatus.
func (p ProductionOrderStatus) IsValid() bool {
	for _, candidate := range validProductionOrderStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductionOrderStatus converts raw input into a ProductionOrderStatus.
func ParseProductionOrderStatus(value string) (ProductionOrderStatus, error) {
	for _, candidate := range validProductionOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid production order status %q", value)
}

// IsTerminal reports whether no further transitions are possible.
func (p ProductionOrderStatus) IsTerminal() bool {
	return p == ProductionOrderStatusComplete || p == ProductionOrderStatusScrapped
}

// ProductionOrderAction is a transition request against a production order.
type ProductionOrderAction string

const (
	ProductionOrderActionRelease  ProductionOrderAction = "release"
	ProductionOrderActionStart    ProductionOrderAction = "start"
	ProductionOrderActionReport   ProductionOrderAction = "report"
	ProductionOrderActionComplete ProductionOrderAction = "complete"
	ProductionOrderActionScrap    ProductionOrderAction = "scrap"
	ProductionOrderActionSplit    ProductionOrderAction = "split"
)

func ParseProductionOrderAction(value string) (ProductionOrderAction, error) {
	switch a := ProductionOrderAction(value); a {
	case ProductionOrderActionRelease, ProductionOrderActionStart, ProductionOrderActionReport,
		ProductionOrderActionComplete, ProductionOrderActionScrap, ProductionOrderActionSplit:
		return a, nil
	}
	return "", fmt.Errorf("invalid production order action %q", value)
}
