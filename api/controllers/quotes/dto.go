package quotes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type quoteResponse struct {
	ID              uuid.UUID         `json:"id"`
	CustomerRef     string            `json:"customer_ref"`
	ProductID       uuid.UUID         `json:"product_id"`
	Quantity        decimal.Decimal   `json:"quantity"`
	UnitPrice       decimal.Decimal   `json:"unit_price"`
	TotalPrice      decimal.Decimal   `json:"total_price"`
	Status          enums.QuoteStatus `json:"status"`
	ExpiresAt       time.Time         `json:"expires_at"`
	SalesOrderID    *uuid.UUID        `json:"sales_order_id,omitempty"`
	Notes           *string           `json:"notes,omitempty"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type salesOrderResponse struct {
	ID          uuid.UUID              `json:"id"`
	QuoteID     uuid.UUID              `json:"quote_id"`
	CustomerRef string                 `json:"customer_ref"`
	ProductID   uuid.UUID              `json:"product_id"`
	Quantity    decimal.Decimal        `json:"quantity"`
	UnitPrice   decimal.Decimal        `json:"unit_price"`
	Status      enums.SalesOrderStatus `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
}

func toQuoteResponse(q *models.Quote) quoteResponse {
	return quoteResponse{
		ID:              q.ID,
		CustomerRef:     q.CustomerRef,
		ProductID:       q.ProductID,
		Quantity:        q.Quantity,
		UnitPrice:       q.UnitPrice,
		TotalPrice:      q.TotalPrice,
		Status:          q.Status,
		ExpiresAt:       q.ExpiresAt,
		SalesOrderID:    q.SalesOrderID,
		Notes:           q.Notes,
		RejectionReason: q.RejectionReason,
		Version:         q.Version,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}

func toSalesOrderResponse(o *models.SalesOrder) salesOrderResponse {
	return salesOrderResponse{
		ID:          o.ID,
		QuoteID:     o.QuoteID,
		CustomerRef: o.CustomerRef,
		ProductID:   o.ProductID,
		Quantity:    o.Quantity,
		UnitPrice:   o.UnitPrice,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
	}
}
