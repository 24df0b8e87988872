package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateQuote           OutboxAggregateType = "quote"
	AggregateSalesOrder      OutboxAggregateType = "sales_order"
	AggregateProductionOrder OutboxAggregateType = "production_order"
	AggregatePurchaseOrder   OutboxAggregateType = "purchase_order"
	AggregateItem            OutboxAggregateType = "item"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateQuote,
	AggregateSalesOrder,
	AggregateProductionOrder,
	AggregatePurchaseOrder,
	AggregateItem,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventQuoteStatusChanged           OutboxEventType = "quote_status_changed"
	EventQuoteConverted               OutboxEventType = "quote_converted"
	EventProductionOrderStatusChanged OutboxEventType = "production_order_status_changed"
	EventProductionOrderSplit         OutboxEventType = "production_order_split"
	EventPurchaseOrderStatusChanged   OutboxEventType = "purchase_order_status_changed"
	EventPurchaseOrderReceived        OutboxEventType = "purchase_order_received"
	EventInventoryAdjusted            OutboxEventType = "inventory_adjusted"
	EventSupplyReconciled             OutboxEventType = "supply_reconciled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventQuoteStatusChanged,
	EventQuoteConverted,
	EventProductionOrderStatusChanged,
	EventProductionOrderSplit,
	EventPurchaseOrderStatusChanged,
	EventPurchaseOrderReceived,
	EventInventoryAdjusted,
	EventSupplyReconciled,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
