package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// Balance is the summed quantity per transaction type for one item of one source document.
type Balance map[enums.InventoryTransactionType]decimal.Decimal

// OutstandingAllocation is what the source still holds allocated: allocations
// minus deallocations and component issues.
func (b Balance) OutstandingAllocation() decimal.Decimal {
	out := b[enums.InventoryTransactionAllocation].
		Sub(b[enums.InventoryTransactionDeallocation]).
		Sub(b[enums.InventoryTransactionComponentIssue])
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Issued is the quantity consumed by the source.
func (b Balance) Issued() decimal.Decimal {
	return b[enums.InventoryTransactionComponentIssue]
}

// OutstandingSupply is planned supply the source has neither received nor
// cancelled.
func (b Balance) OutstandingSupply() decimal.Decimal {
	out := b[enums.InventoryTransactionSupplyPlanned].
		Sub(b[enums.InventoryTransactionSupplyCancelled]).
		Sub(b[enums.InventoryTransactionProductionReceipt]).
		Sub(b[enums.InventoryTransactionPurchaseReceipt])
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
