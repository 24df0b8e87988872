package quotes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// Repository persists quotes and the sales orders converted from them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, quote *models.Quote) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	Update(ctx context.Context, quote *models.Quote, updates map[string]any) error
	CreateSalesOrder(ctx context.Context, order *models.SalesOrder) error
	FindSalesOrder(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error)
	UpdateSalesOrderStatus(ctx context.Context, id uuid.UUID, status enums.SalesOrderStatus) error
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

func (r *repository) Create(ctx context.Context, quote *models.Quote) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	if err := db.LockForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

// Update writes updates guarded by the quote's loaded version.
func (r *repository) Update(ctx context.Context, quote *models.Quote, updates map[string]any) error {
	if err := db.UpdateVersioned(ctx, r.db, &models.Quote{}, quote.ID, quote.Version, updates); err != nil {
		return err
	}
	quote.Version++
	return nil
}

func (r *repository) CreateSalesOrder(ctx context.Context, order *models.SalesOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindSalesOrder(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error) {
	var order models.SalesOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateSalesOrderStatus(ctx context.Context, id uuid.UUID, status enums.SalesOrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.SalesOrder{}).
		Where("id = ?", id).
		Update("status", status).Error
}
