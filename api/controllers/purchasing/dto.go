package purchasing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type orderLineResponse struct {
	ID               uuid.UUID       `json:"id"`
	LineNo           int             `json:"line_no"`
	ItemID           uuid.UUID       `json:"item_id"`
	QuantityOrdered  decimal.Decimal `json:"quantity_ordered"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
	QuantityOpen     decimal.Decimal `json:"quantity_open"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
}

type orderResponse struct {
	ID          uuid.UUID                 `json:"id"`
	SupplierRef string                    `json:"supplier_ref"`
	Status      enums.PurchaseOrderStatus `json:"status"`
	Notes       *string                   `json:"notes,omitempty"`
	OrderedAt   *time.Time                `json:"ordered_at,omitempty"`
	ShippedAt   *time.Time                `json:"shipped_at,omitempty"`
	ReceivedAt  *time.Time                `json:"received_at,omitempty"`
	ClosedAt    *time.Time                `json:"closed_at,omitempty"`
	CancelledAt *time.Time                `json:"cancelled_at,omitempty"`
	Version     int                       `json:"version"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
	Lines       []orderLineResponse       `json:"lines"`
}

func toOrderResponse(o *models.PurchaseOrder) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, line := range o.Lines {
		open := line.QuantityOrdered.Sub(line.QuantityReceived)
		if open.IsNegative() {
			open = decimal.Zero
		}
		lines = append(lines, orderLineResponse{
			ID:               line.ID,
			LineNo:           line.LineNo,
			ItemID:           line.ItemID,
			QuantityOrdered:  line.QuantityOrdered,
			QuantityReceived: line.QuantityReceived,
			QuantityOpen:     open,
			UnitCost:         line.UnitCost,
		})
	}
	return orderResponse{
		ID:          o.ID,
		SupplierRef: o.SupplierRef,
		Status:      o.Status,
		Notes:       o.Notes,
		OrderedAt:   o.OrderedAt,
		ShippedAt:   o.ShippedAt,
		ReceivedAt:  o.ReceivedAt,
		ClosedAt:    o.ClosedAt,
		CancelledAt: o.CancelledAt,
		Version:     o.Version,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Lines:       lines,
	}
}
