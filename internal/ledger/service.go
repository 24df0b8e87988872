package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
)

// Service is the only writer of item stock buckets.
type Service interface {
	Post(ctx context.Context, tx *gorm.DB, posting Posting) (*models.InventoryTransaction, error)
	Balances(ctx context.Context, tx *gorm.DB, sourceType enums.InventorySourceType, sourceID uuid.UUID) (map[uuid.UUID]Balance, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.InventoryTransaction, error)
	ListByItem(ctx context.Context, itemID uuid.UUID, params pagination.Params) (*ItemHistory, error)
	ListBySource(ctx context.Context, sourceType enums.InventorySourceType, sourceID uuid.UUID) ([]models.InventoryTransaction, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Posting is one stock movement requested by an order transition.
type Posting struct {
	ItemID       uuid.UUID
	Type         enums.InventoryTransactionType
	Quantity     decimal.Decimal
	SourceType   enums.InventorySourceType
	SourceID     *uuid.UUID
	SourceLineID *uuid.UUID
	Notes        string
}

// AdjustInput is a manual on-hand correction such as a cycle count.
type AdjustInput struct {
	ItemID uuid.UUID
	Delta  decimal.Decimal
	Notes  string
}

// ItemHistory is one page of an item's transactions, newest first.
type ItemHistory struct {
	Transactions []models.InventoryTransaction `json:"transactions"`
	NextCursor   string                        `json:"next_cursor,omitempty"`
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService wires the ledger with its repository, transaction runner and outbox.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

// Post locks the item, applies the movement to its buckets and appends the
// transaction row. It must run inside the caller's transaction.
func (s *service) Post(ctx context.Context, tx *gorm.DB, posting Posting) (*models.InventoryTransaction, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if err := validatePosting(posting); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	item, err := repo.FindItemForUpdate(ctx, posting.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnknownItem, "item not found").
				WithDetails(map[string]any{"item_id": posting.ItemID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock item")
	}

	next, err := Apply(Stock{OnHand: item.OnHandQty, Allocated: item.AllocatedQty, Incoming: item.IncomingQty}, posting.Type, posting.Quantity)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			typed.WithDetails(map[string]any{
				"item_id":  item.ID.String(),
				"sku":      item.SKU,
				"on_hand":  item.OnHandQty.String(),
				"quantity": posting.Quantity.String(),
				"type":     string(posting.Type),
			})
		}
		return nil, err
	}
	if err := repo.UpdateItemStock(ctx, item.ID, next); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update item stock")
	}

	row := &models.InventoryTransaction{
		ItemID:       item.ID,
		Type:         posting.Type,
		Quantity:     posting.Quantity,
		SourceType:   posting.SourceType,
		SourceID:     posting.SourceID,
		SourceLineID: posting.SourceLineID,
	}
	if notes := strings.TrimSpace(posting.Notes); notes != "" {
		row.Notes = &notes
	}
	if err := repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append inventory transaction")
	}
	return row, nil
}

func validatePosting(p Posting) error {
	if p.ItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if !p.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid inventory transaction type %q", p.Type)
	}
	if p.SourceType == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "source type is required")
	}
	if p.Quantity.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be zero")
	}
	if p.Quantity.IsNegative() && !p.Type.AllowsNegative() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "%s quantity must be positive", p.Type)
	}
	return nil
}

// Apply returns the buckets after a movement of qty. Bucket reductions other
// than on hand floor at zero; on hand never goes negative.
func Apply(stock Stock, txnType enums.InventoryTransactionType, qty decimal.Decimal) (Stock, error) {
	next := stock
	switch txnType {
	case enums.InventoryTransactionPurchaseReceipt, enums.InventoryTransactionProductionReceipt:
		next.OnHand = stock.OnHand.Add(qty)
		next.Incoming = floorSub(stock.Incoming, qty)
	case enums.InventoryTransactionComponentIssue:
		next.OnHand = stock.OnHand.Sub(qty)
		next.Allocated = floorSub(stock.Allocated, qty)
	case enums.InventoryTransactionAllocation:
		next.Allocated = stock.Allocated.Add(qty)
	case enums.InventoryTransactionDeallocation:
		next.Allocated = floorSub(stock.Allocated, qty)
	case enums.InventoryTransactionSupplyPlanned:
		next.Incoming = stock.Incoming.Add(qty)
	case enums.InventoryTransactionSupplyCancelled:
		next.Incoming = floorSub(stock.Incoming, qty)
	case enums.InventoryTransactionSupplyCorrection:
		next.Incoming = floorSub(stock.Incoming, qty.Neg())
	case enums.InventoryTransactionAdjustment:
		next.OnHand = stock.OnHand.Add(qty)
	default:
		return stock, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid inventory transaction type %q", txnType)
	}
	if next.OnHand.IsNegative() {
		return stock, pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock on hand")
	}
	return next, nil
}

func floorSub(a, b decimal.Decimal) decimal.Decimal {
	out := a.Sub(b)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Balances sums the transactions of one source document per item.
func (s *service) Balances(ctx context.Context, tx *gorm.DB, sourceType enums.InventorySourceType, sourceID uuid.UUID) (map[uuid.UUID]Balance, error) {
	totals, err := s.repo.WithTx(tx).TotalsBySource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum source transactions")
	}
	out := make(map[uuid.UUID]Balance)
	for _, t := range totals {
		b, ok := out[t.ItemID]
		if !ok {
			b = Balance{}
			out[t.ItemID] = b
		}
		b[t.TransactionType] = b[t.TransactionType].Add(t.Total)
	}
	return out, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.InventoryTransaction, error) {
	if input.Delta.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}
	if strings.TrimSpace(input.Notes) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes are required for adjustments")
	}

	var row *models.InventoryTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		row, err = s.Post(ctx, tx, Posting{
			ItemID:     input.ItemID,
			Type:       enums.InventoryTransactionAdjustment,
			Quantity:   input.Delta,
			SourceType: enums.InventorySourceManual,
			Notes:      input.Notes,
		})
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateItem,
			AggregateID:   input.ItemID,
			Data: payloads.InventoryAdjustedEvent{
				ItemID:        input.ItemID,
				TransactionID: row.ID,
				Delta:         input.Delta,
				Notes:         input.Notes,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) ListByItem(ctx context.Context, itemID uuid.UUID, params pagination.Params) (*ItemHistory, error) {
	cursor, err := params.After()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByItem(ctx, itemID, cursor, params.Fetch())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list item transactions")
	}
	page, next := pagination.Cut(rows, params, func(tx models.InventoryTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: tx.CreatedAt, ID: tx.ID}
	})
	return &ItemHistory{Transactions: page, NextCursor: next}, nil
}

func (s *service) ListBySource(ctx context.Context, sourceType enums.InventorySourceType, sourceID uuid.UUID) ([]models.InventoryTransaction, error) {
	rows, err := s.repo.ListBySource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list source transactions")
	}
	return rows, nil
}
