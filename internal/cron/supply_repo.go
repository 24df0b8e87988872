package cron

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

var (
	openPurchaseStatuses = []enums.PurchaseOrderStatus{
		enums.PurchaseOrderStatusOrdered,
		enums.PurchaseOrderStatusShipped,
	}
	openProductionStatuses = []enums.ProductionOrderStatus{
		enums.ProductionOrderStatusReleased,
		enums.ProductionOrderStatusInProgress,
	}
)

// SupplyRepository derives an item's expected incoming quantity from the open
// orders that feed it.
type SupplyRepository struct{}

func NewSupplyRepository() *SupplyRepository {
	return &SupplyRepository{}
}

// ExpectedIncoming sums outstanding purchase order lines on placed orders and
// uncredited quantity on released production orders for itemID. Quantities
// are summed in Go to keep decimal precision on every driver.
func (r *SupplyRepository) ExpectedIncoming(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (decimal.Decimal, error) {
	var lines []models.PurchaseOrderLine
	openOrders := tx.Model(&models.PurchaseOrder{}).Select("id").Where("status IN ?", openPurchaseStatuses)
	if err := tx.WithContext(ctx).
		Where("item_id = ? AND purchase_order_id IN (?)", itemID, openOrders).
		Find(&lines).Error; err != nil {
		return decimal.Zero, err
	}

	var orders []models.ProductionOrder
	if err := tx.WithContext(ctx).
		Where("product_id = ? AND status IN ?", itemID, openProductionStatuses).
		Find(&orders).Error; err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Outstanding())
	}
	for _, order := range orders {
		total = total.Add(order.OutstandingSupply())
	}
	return total, nil
}
