package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// QuoteStatusChangedEvent is emitted on every quote transition except conversion.
type QuoteStatusChangedEvent struct {
	QuoteID   uuid.UUID         `json:"quote_id"`
	From      enums.QuoteStatus `json:"from"`
	To        enums.QuoteStatus `json:"to"`
	Action    enums.QuoteAction `json:"action"`
	Reason    string            `json:"reason,omitempty"`
	ChangedAt time.Time         `json:"changed_at"`
}

// QuoteConvertedEvent announces the sales order created from a quote.
type QuoteConvertedEvent struct {
	QuoteID           uuid.UUID       `json:"quote_id"`
	SalesOrderID      uuid.UUID       `json:"sales_order_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	ProductionOrderID *uuid.UUID      `json:"production_order_id,omitempty"`
	ConvertedAt       time.Time       `json:"converted_at"`
}

// ProductionOrderStatusChangedEvent covers release, start, report, complete and scrap.
type ProductionOrderStatusChangedEvent struct {
	ProductionOrderID uuid.UUID                   `json:"production_order_id"`
	SalesOrderID      *uuid.UUID                  `json:"sales_order_id,omitempty"`
	ProductID         uuid.UUID                   `json:"product_id"`
	From              enums.ProductionOrderStatus `json:"from"`
	To                enums.ProductionOrderStatus `json:"to"`
	Action            enums.ProductionOrderAction `json:"action"`
	QuantityCompleted decimal.Decimal             `json:"quantity_completed"`
	ChangedAt         time.Time                   `json:"changed_at"`
}

// ProductionOrderSplitEvent links a child order to the parent it was carved from.
type ProductionOrderSplitEvent struct {
	ParentOrderID uuid.UUID       `json:"parent_order_id"`
	ChildOrderID  uuid.UUID       `json:"child_order_id"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// PurchaseOrderStatusChangedEvent covers place, ship, close and cancel.
type PurchaseOrderStatusChangedEvent struct {
	PurchaseOrderID uuid.UUID                 `json:"purchase_order_id"`
	From            enums.PurchaseOrderStatus `json:"from"`
	To              enums.PurchaseOrderStatus `json:"to"`
	Action          enums.PurchaseOrderAction `json:"action"`
	ChangedAt       time.Time                 `json:"changed_at"`
}

// ReceivedLine is one line of a purchase receipt.
type ReceivedLine struct {
	LineID           uuid.UUID       `json:"line_id"`
	ItemID           uuid.UUID       `json:"item_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
}

// PurchaseOrderReceivedEvent is emitted once per receipt call.
type PurchaseOrderReceivedEvent struct {
	PurchaseOrderID uuid.UUID                 `json:"purchase_order_id"`
	Status          enums.PurchaseOrderStatus `json:"status"`
	Lines           []ReceivedLine            `json:"lines"`
	ReceivedAt      time.Time                 `json:"received_at"`
}

type InventoryAdjustedEvent struct {
	ItemID        uuid.UUID       `json:"item_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Delta         decimal.Decimal `json:"delta"`
	Notes         string          `json:"notes"`
}

// SupplyReconciledEvent reports an incoming bucket that drifted from open supply.
type SupplyReconciledEvent struct {
	ItemID     uuid.UUID       `json:"item_id"`
	Previous   decimal.Decimal `json:"previous"`
	Recomputed decimal.Decimal `json:"recomputed"`
}
