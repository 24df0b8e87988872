package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
)

// Repository persists inventory transactions and the item stock buckets they move.
// Transactions are append-only: there is no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.InventoryTransaction) error
	FindItemForUpdate(ctx context.Context, itemID uuid.UUID) (*models.Item, error)
	UpdateItemStock(ctx context.Context, itemID uuid.UUID, stock Stock) error
	ListByItem(ctx context.Context, itemID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.InventoryTransaction, error)
	ListBySource(ctx context.Context, sourceType enums.InventorySourceType, sourceID uuid.UUID) ([]models.InventoryTransaction, error)
	TotalsBySource(ctx context.Context, sourceType enums.InventorySourceType, sourceID uuid.UUID) ([]SourceTotal, error)
}

// Stock is the value of the three mutable buckets of an item.
type Stock struct {
	OnHand    decimal.Decimal
	Allocated decimal.Decimal
	Incoming  decimal.Decimal
}

// SourceTotal is the summed quantity of one transaction type for one item of a source document.
type SourceTotal struct {
	ItemID          uuid.UUID                      `gorm:"column:item_id"`
	TransactionType enums.InventoryTransactionType `gorm:"column:transaction_type"`
	Total           decimal.Decimal                `gorm:"column:total"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindItemForUpdate(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := db.LockForUpdate(r.db.WithContext(ctx)).Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) UpdateItemStock(ctx context.Context, itemID uuid.UUID, stock Stock) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"on_hand_qty":   stock.OnHand,
			"allocated_qty": stock.Allocated,
			"incoming_qty":  stock.Incoming,
		}).Error
}

// ListByItem pages newest first, starting after cursor when set.
func (r *repository) ListByItem(ctx context.Context, itemID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.InventoryTransaction, error) {
	query := r.db.WithContext(ctx).Where("item_id = ?", itemID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.InventoryTransaction
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListBySource(ctx context.Context, sourceType enums.InventorySourceType, sourceID uuid.UUID) ([]models.InventoryTransaction, error) {
	var rows []models.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) TotalsBySource(ctx context.Context, sourceType enums.InventorySourceType, sourceID uuid.UUID) ([]SourceTotal, error) {
	var totals []SourceTotal
	err := r.db.WithContext(ctx).
		Model(&models.InventoryTransaction{}).
		Select("item_id, transaction_type, COALESCE(SUM(quantity), 0) AS total").
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Group("item_id, transaction_type").
		Scan(&totals).Error
	return totals, err
}
