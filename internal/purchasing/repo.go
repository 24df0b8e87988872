package purchasing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PurchaseOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	Update(ctx context.Context, order *models.PurchaseOrder, updates map[string]any) error
	UpdateLineReceived(ctx context.Context, lineID uuid.UUID, received decimal.Decimal) error
	ListByStatuses(ctx context.Context, statuses ...enums.PurchaseOrderStatus) ([]models.PurchaseOrder, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its lines.
func (r *repository) Create(ctx context.Context, order *models.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Lines", orderLines).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate locks the order row and loads its lines in a second query so
// the lock clause stays on the parent.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := db.LockForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	if err := orderLines(r.db.WithContext(ctx)).
		Where("purchase_order_id = ?", id).
		Find(&order.Lines).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Update writes updates guarded by the order's loaded version.
func (r *repository) Update(ctx context.Context, order *models.PurchaseOrder, updates map[string]any) error {
	if err := db.UpdateVersioned(ctx, r.db, &models.PurchaseOrder{}, order.ID, order.Version, updates); err != nil {
		return err
	}
	order.Version++
	return nil
}

func (r *repository) UpdateLineReceived(ctx context.Context, lineID uuid.UUID, received decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.PurchaseOrderLine{}).
		Where("id = ?", lineID).
		Update("quantity_received", received).Error
}

func (r *repository) ListByStatuses(ctx context.Context, statuses ...enums.PurchaseOrderStatus) ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Lines", orderLines).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func orderLines(tx *gorm.DB) *gorm.DB {
	return tx.Order("line_no ASC")
}
