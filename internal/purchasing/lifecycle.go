package purchasing

import (
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/fsm"
)

type edge = fsm.Transition[enums.PurchaseOrderStatus, enums.PurchaseOrderAction]

// Lifecycle is the purchase order transition table. Receive lands on received
// only once every line is fully received; partial receipts keep the order
// shipped.
var Lifecycle = fsm.New[enums.PurchaseOrderStatus, enums.PurchaseOrderAction]("purchase_order",
	edge{
		From:   []enums.PurchaseOrderStatus{enums.PurchaseOrderStatusDraft},
		Action: enums.PurchaseOrderActionPlace,
		To:     enums.PurchaseOrderStatusOrdered,
	},
	edge{
		From:   []enums.PurchaseOrderStatus{enums.PurchaseOrderStatusOrdered},
		Action: enums.PurchaseOrderActionShip,
		To:     enums.PurchaseOrderStatusShipped,
	},
	edge{
		From:   []enums.PurchaseOrderStatus{enums.PurchaseOrderStatusShipped},
		Action: enums.PurchaseOrderActionReceive,
		To:     enums.PurchaseOrderStatusReceived,
	},
	edge{
		From:   []enums.PurchaseOrderStatus{enums.PurchaseOrderStatusReceived},
		Action: enums.PurchaseOrderActionClose,
		To:     enums.PurchaseOrderStatusClosed,
	},
	edge{
		From: []enums.PurchaseOrderStatus{
			enums.PurchaseOrderStatusDraft,
			enums.PurchaseOrderStatusOrdered,
			enums.PurchaseOrderStatusShipped,
		},
		Action: enums.PurchaseOrderActionCancel,
		To:     enums.PurchaseOrderStatusCancelled,
	},
)
