package enums

import "fmt"

// InventoryTransactionType maps to the inventory_transaction_type enum in Postgres.
type InventoryTransactionType string

const (
	InventoryTransactionPurchaseReceipt   InventoryTransactionType = "purchase_receipt"
	InventoryTransactionProductionReceipt InventoryTransactionType = "production_receipt"
	InventoryTransactionComponentIssue    InventoryTransactionType = "component_issue"
	InventoryTransactionAllocation        InventoryTransactionType = "allocation"
	InventoryTransactionDeallocation      InventoryTransactionType = "deallocation"
	InventoryTransactionSupplyPlanned     InventoryTransactionType = "supply_planned"
	InventoryTransactionSupplyCancelled   InventoryTransactionType = "supply_cancelled"
	InventoryTransactionSupplyCorrection  InventoryTransactionType = "supply_correction"
	InventoryTransactionAdjustment        InventoryTransactionType = "adjustment"
)

var validInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTransactionPurchaseReceipt,
	InventoryTransactionProductionReceipt,
	InventoryTransactionComponentIssue,
	InventoryTransactionAllocation,
	InventoryTransactionDeallocation,
	InventoryTransactionSupplyPlanned,
	InventoryTransactionSupplyCancelled,
	InventoryTransactionSupplyCorrection,
	InventoryTransactionAdjustment,
}

// IsValid reports whether the value is a known InventoryTransactionType.
func (i InventoryTransactionType) IsValid() bool {
	for _, candidate := range validInventoryTransactionTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInventoryTransactionType converts raw input into a InventoryTransactionType.
func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	for _, candidate := range validInventoryTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory transaction type %q", value)
}

// AllowsNegative reports whether the type carries a signed quantity.
func (t InventoryTransactionType) AllowsNegative() bool {
	return t == InventoryTransactionSupplyCorrection || t == InventoryTransactionAdjustment
}

// InventorySourceType names the document an inventory transaction originates from.
type InventorySourceType string

const (
	InventorySourcePurchaseOrder   InventorySourceType = "purchase_order"
	InventorySourceProductionOrder InventorySourceType = "production_order"
	InventorySourceSalesOrder      InventorySourceType = "sales_order"
	InventorySourceManual          InventorySourceType = "manual"
	InventorySourceReconcile       InventorySourceType = "reconcile"
)
