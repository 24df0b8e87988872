package production

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalproduction "github.com/angelmondragon/shopfloor-backend/internal/production"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type orderResponse struct {
	ID                uuid.UUID                   `json:"id"`
	ProductID         uuid.UUID                   `json:"product_id"`
	SalesOrderID      *uuid.UUID                  `json:"sales_order_id,omitempty"`
	ParentOrderID     *uuid.UUID                  `json:"parent_order_id,omitempty"`
	Status            enums.ProductionOrderStatus `json:"status"`
	QuantityOrdered   decimal.Decimal             `json:"quantity_ordered"`
	QuantityCompleted decimal.Decimal             `json:"quantity_completed"`
	QuantityCredited  decimal.Decimal             `json:"quantity_credited"`
	ScrapReason       *string                     `json:"scrap_reason,omitempty"`
	ReleasedAt        *time.Time                  `json:"released_at,omitempty"`
	StartedAt         *time.Time                  `json:"started_at,omitempty"`
	CompletedAt       *time.Time                  `json:"completed_at,omitempty"`
	ScrappedAt        *time.Time                  `json:"scrapped_at,omitempty"`
	Version           int                         `json:"version"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

type splitResponse struct {
	Source orderResponse `json:"source"`
	Child  orderResponse `json:"child"`
}

func toOrderResponse(o *models.ProductionOrder) orderResponse {
	return orderResponse{
		ID:                o.ID,
		ProductID:         o.ProductID,
		SalesOrderID:      o.SalesOrderID,
		ParentOrderID:     o.ParentOrderID,
		Status:            o.Status,
		QuantityOrdered:   o.QuantityOrdered,
		QuantityCompleted: o.QuantityCompleted,
		QuantityCredited:  o.QuantityCredited,
		ScrapReason:       o.ScrapReason,
		ReleasedAt:        o.ReleasedAt,
		StartedAt:         o.StartedAt,
		CompletedAt:       o.CompletedAt,
		ScrappedAt:        o.ScrappedAt,
		Version:           o.Version,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func toSplitResponse(result *internalproduction.SplitResult) splitResponse {
	return splitResponse{
		Source: toOrderResponse(result.Source),
		Child:  toOrderResponse(result.Child),
	}
}
