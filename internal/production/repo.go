package production

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.ProductionOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error)
	Update(ctx context.Context, order *models.ProductionOrder, updates map[string]any) error
	ListByStatuses(ctx context.Context, statuses ...enums.ProductionOrderStatus) ([]models.ProductionOrder, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.ProductionOrder, error)
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

func (r *repository) Create(ctx context.Context, order *models.ProductionOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	if err := db.LockForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Update writes updates guarded by the order's loaded version.
func (r *repository) Update(ctx context.Context, order *models.ProductionOrder, updates map[string]any) error {
	if err := db.UpdateVersioned(ctx, r.db, &models.ProductionOrder{}, order.ID, order.Version, updates); err != nil {
		return err
	}
	order.Version++
	return nil
}

func (r *repository) ListByStatuses(ctx context.Context, statuses ...enums.ProductionOrderStatus) ([]models.ProductionOrder, error) {
	var orders []models.ProductionOrder
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.ProductionOrder, error) {
	var orders []models.ProductionOrder
	err := r.db.WithContext(ctx).
		Where("parent_order_id = ?", parentID).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}
