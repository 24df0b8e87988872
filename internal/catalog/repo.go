package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
)

// Repository reads the item catalog, bills of materials and routings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateItem(ctx context.Context, item *models.Item) error
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindItemForUpdate(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error)
	ListItems(ctx context.Context) ([]models.Item, error)
	CreateBOMLines(ctx context.Context, lines []models.BOMLine) error
	ComponentsOf(ctx context.Context, parentID uuid.UUID) ([]models.BOMLine, error)
	CreateRoutingOperations(ctx context.Context, ops []models.RoutingOperation) error
	ListRoutingOperations(ctx context.Context, productID uuid.UUID) ([]models.RoutingOperation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateItem(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemForUpdate locks the item row for the rest of the surrounding transaction.
func (r *repository) FindItemForUpdate(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := db.LockForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := r.db.WithContext(ctx).Order("sku ASC").Find(&items).Error
	return items, err
}

func (r *repository) CreateBOMLines(ctx context.Context, lines []models.BOMLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

// ComponentsOf returns the direct component lines of parentID.
func (r *repository) ComponentsOf(ctx context.Context, parentID uuid.UUID) ([]models.BOMLine, error) {
	var lines []models.BOMLine
	err := r.db.WithContext(ctx).
		Where("parent_item_id = ?", parentID).
		Order("position ASC").
		Order("created_at ASC").
		Find(&lines).Error
	return lines, err
}

func (r *repository) CreateRoutingOperations(ctx context.Context, ops []models.RoutingOperation) error {
	if len(ops) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&ops).Error
}

func (r *repository) ListRoutingOperations(ctx context.Context, productID uuid.UUID) ([]models.RoutingOperation, error) {
	var ops []models.RoutingOperation
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("sequence ASC").
		Find(&ops).Error
	return ops, err
}
