package production

import (
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/fsm"
)

type edge = fsm.Transition[enums.ProductionOrderStatus, enums.ProductionOrderAction]

// Lifecycle is the production order transition table. Report and split leave
// the status unchanged.
var Lifecycle = fsm.New[enums.ProductionOrderStatus, enums.ProductionOrderAction]("production_order",
	edge{
		From:   []enums.ProductionOrderStatus{enums.ProductionOrderStatusDraft},
		Action: enums.ProductionOrderActionRelease,
		To:     enums.ProductionOrderStatusReleased,
	},
	edge{
		From:   []enums.ProductionOrderStatus{enums.ProductionOrderStatusReleased},
		Action: enums.ProductionOrderActionStart,
		To:     enums.ProductionOrderStatusInProgress,
	},
	edge{
		From:   []enums.ProductionOrderStatus{enums.ProductionOrderStatusInProgress},
		Action: enums.ProductionOrderActionReport,
		To:     enums.ProductionOrderStatusInProgress,
	},
	edge{
		From:   []enums.ProductionOrderStatus{enums.ProductionOrderStatusInProgress},
		Action: enums.ProductionOrderActionComplete,
		To:     enums.ProductionOrderStatusComplete,
	},
	edge{
		From: []enums.ProductionOrderStatus{
			enums.ProductionOrderStatusDraft,
			enums.ProductionOrderStatusReleased,
			enums.ProductionOrderStatusInProgress,
		},
		Action: enums.ProductionOrderActionScrap,
		To:     enums.ProductionOrderStatusScrapped,
	},
	edge{From: []enums.ProductionOrderStatus{enums.ProductionOrderStatusDraft}, Action: enums.ProductionOrderActionSplit, To: enums.ProductionOrderStatusDraft},
	edge{From: []enums.ProductionOrderStatus{enums.ProductionOrderStatusReleased}, Action: enums.ProductionOrderActionSplit, To: enums.ProductionOrderStatusReleased},
	edge{From: []enums.ProductionOrderStatus{enums.ProductionOrderStatusInProgress}, Action: enums.ProductionOrderActionSplit, To: enums.ProductionOrderStatusInProgress},
)
