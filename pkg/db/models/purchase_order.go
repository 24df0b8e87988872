package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type PurchaseOrder struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	SupplierRef string                    `gorm:"column:supplier_ref;not null"`
	Status      enums.PurchaseOrderStatus `gorm:"column:status;type:purchase_order_status;not null"`
	Notes       *string                   `gorm:"column:notes"`
	OrderedAt   *time.Time                `gorm:"column:ordered_at"`
	ShippedAt   *time.Time                `gorm:"column:shipped_at"`
	ReceivedAt  *time.Time                `gorm:"column:received_at"`
	ClosedAt    *time.Time                `gorm:"column:closed_at"`
	CancelledAt *time.Time                `gorm:"column:cancelled_at"`
	Version     int                       `gorm:"column:version;not null;default:1"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
	Lines       []PurchaseOrderLine       `gorm:"foreignKey:PurchaseOrderID"`
}

func (o *PurchaseOrder) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// FullyReceived reports whether every line has received its ordered quantity.
func (o PurchaseOrder) FullyReceived() bool {
	if len(o.Lines) == 0 {
		return false
	}
	for _, line := range o.Lines {
		if line.QuantityReceived.LessThan(line.QuantityOrdered) {
			return false
		}
	}
	return true
}

// PurchaseOrderLine carries a monotonically non-decreasing QuantityReceived
// that never exceeds QuantityOrdered.
type PurchaseOrderLine struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseOrderID  uuid.UUID       `gorm:"column:purchase_order_id;type:uuid;not null;index"`
	LineNo           int             `gorm:"column:line_no;not null"`
	ItemID           uuid.UUID       `gorm:"column:item_id;type:uuid;not null"`
	QuantityOrdered  decimal.Decimal `gorm:"column:quantity_ordered;type:numeric(18,4);not null"`
	QuantityReceived decimal.Decimal `gorm:"column:quantity_received;type:numeric(18,4);not null;default:0"`
	UnitCost         decimal.Decimal `gorm:"column:unit_cost;type:numeric(18,4);not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *PurchaseOrderLine) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// Outstanding is the ordered quantity still expected from the supplier.
func (l PurchaseOrderLine) Outstanding() decimal.Decimal {
	rest := l.QuantityOrdered.Sub(l.QuantityReceived)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}
