// Package purchasing runs purchase orders through their lifecycle, including
// partial receipts against individual lines.
package purchasing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/internal/ledger"
	dbpkg "github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type itemLookup interface {
	FindItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error)
}

type transitionRecorder interface {
	Observe(entity, action, outcome string)
}

type Service interface {
	CreatePurchaseOrder(ctx context.Context, input CreateInput) (*models.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	TransitionPurchaseOrder(ctx context.Context, input TransitionInput) (*models.PurchaseOrder, error)
	ReceivePurchaseOrderLines(ctx context.Context, input ReceiveInput) (*models.PurchaseOrder, error)
}

type LineInput struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
}

type CreateInput struct {
	SupplierRef string
	Notes       string
	Lines       []LineInput
}

type TransitionInput struct {
	OrderID uuid.UUID
	Action  enums.PurchaseOrderAction
	Actor   *outbox.Actor
}

// LineReceipt adds Quantity to one line's received total.
type LineReceipt struct {
	LineID   uuid.UUID
	Quantity decimal.Decimal
}

type ReceiveInput struct {
	OrderID uuid.UUID
	Lines   []LineReceipt
	Notes   string
	Actor   *outbox.Actor
}

type ServiceParams struct {
	Repository Repository
	Items      itemLookup
	Ledger     ledger.Service
	Tx         txRunner
	Outbox     outboxPublisher
	Metrics    transitionRecorder
	Now        func() time.Time
}

type service struct {
	repo    Repository
	items   itemLookup
	ledger  ledger.Service
	tx      txRunner
	outbox  outboxPublisher
	metrics transitionRecorder
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("purchasing repository required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item lookup required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repository,
		items:   params.Items,
		ledger:  params.Ledger,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (s *service) CreatePurchaseOrder(ctx context.Context, input CreateInput) (*models.PurchaseOrder, error) {
	supplier := strings.TrimSpace(input.SupplierRef)
	if supplier == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier reference is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}

	ids := make([]uuid.UUID, 0, len(input.Lines))
	for i, line := range input.Lines {
		if line.ItemID == uuid.Nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: item id is required", i+1)
		}
		if !line.Quantity.IsPositive() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: quantity must be greater than zero", i+1)
		}
		if line.UnitCost.IsNegative() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: unit cost must not be negative", i+1)
		}
		ids = append(ids, line.ItemID)
	}
	known, err := s.items.FindItemsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load items")
	}
	found := make(map[uuid.UUID]bool, len(known))
	for _, item := range known {
		found[item.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, pkgerrors.New(pkgerrors.CodeUnknownItem, "item not found").
				WithDetails(map[string]any{"item_id": id.String()})
		}
	}

	order := &models.PurchaseOrder{
		SupplierRef: supplier,
		Status:      enums.PurchaseOrderStatusDraft,
		Version:     1,
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		order.Notes = &notes
	}
	for i, line := range input.Lines {
		order.Lines = append(order.Lines, models.PurchaseOrderLine{
			LineNo:          i + 1,
			ItemID:          line.ItemID,
			QuantityOrdered: line.Quantity,
			UnitCost:        line.UnitCost,
		})
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create purchase order")
	}
	return order, nil
}

func (s *service) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err, id)
	}
	return order, nil
}

// TransitionPurchaseOrder applies place, ship, close or cancel. Receipts go
// through ReceivePurchaseOrderLines.
func (s *service) TransitionPurchaseOrder(ctx context.Context, input TransitionInput) (*models.PurchaseOrder, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase order id is required")
	}
	if input.Action == enums.PurchaseOrderActionReceive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receive requires line quantities").
			WithDetails(map[string]any{"purchase_order_id": input.OrderID.String()})
	}

	var order *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return mapLoadError(err, input.OrderID)
		}

		from := current.Status
		next, err := Lifecycle.Next(from, input.Action)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		updates := map[string]any{"status": next}
		switch input.Action {
		case enums.PurchaseOrderActionPlace:
			if len(current.Lines) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "purchase order has no lines")
			}
			for _, line := range linesByItem(current.Lines) {
				if err := s.post(ctx, tx, current, line, enums.InventoryTransactionSupplyPlanned, line.QuantityOrdered, ""); err != nil {
					return err
				}
			}
			updates["ordered_at"] = now
		case enums.PurchaseOrderActionShip:
			updates["shipped_at"] = now
		case enums.PurchaseOrderActionClose:
			updates["closed_at"] = now
		case enums.PurchaseOrderActionCancel:
			if from.IsOpenSupply() {
				for _, line := range linesByItem(current.Lines) {
					if err := s.post(ctx, tx, current, line, enums.InventoryTransactionSupplyCancelled, line.Outstanding(), "purchase order cancelled"); err != nil {
						return err
					}
				}
			}
			updates["cancelled_at"] = now
		}

		if err := repo.Update(ctx, current, updates); err != nil {
			return mapUpdateError(err)
		}
		order, err = repo.FindByID(ctx, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload purchase order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseOrderStatusChanged,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.PurchaseOrderStatusChangedEvent{
				PurchaseOrderID: order.ID,
				From:            from,
				To:              next,
				Action:          input.Action,
				ChangedAt:       now,
			},
		})
	})
	s.observe(string(input.Action), err)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ReceivePurchaseOrderLines books a receipt against a shipped order. Every
// line is checked before anything is written, so an over-receipt on one line
// leaves all lines untouched. The order moves to received when the last line
// is filled.
func (s *service) ReceivePurchaseOrderLines(ctx context.Context, input ReceiveInput) (*models.PurchaseOrder, error) {
	if err := validateReceipt(input); err != nil {
		return nil, err
	}

	var order *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return mapLoadError(err, input.OrderID)
		}
		if !Lifecycle.Can(current.Status, enums.PurchaseOrderActionReceive) {
			return pkgerrors.InvalidTransition("purchase_order", string(current.Status), string(enums.PurchaseOrderActionReceive))
		}

		lines := make(map[uuid.UUID]*models.PurchaseOrderLine, len(current.Lines))
		for i := range current.Lines {
			lines[current.Lines[i].ID] = &current.Lines[i]
		}
		for _, receipt := range input.Lines {
			line, ok := lines[receipt.LineID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "line does not belong to purchase order").
					WithDetails(map[string]any{
						"purchase_order_id": current.ID.String(),
						"line_id":           receipt.LineID.String(),
					})
			}
			if line.QuantityReceived.Add(receipt.Quantity).GreaterThan(line.QuantityOrdered) {
				return pkgerrors.New(pkgerrors.CodeOverReceipt, "receipt exceeds quantity ordered").
					WithDetails(map[string]any{
						"line_id":           line.ID.String(),
						"quantity_ordered":  line.QuantityOrdered.String(),
						"quantity_received": line.QuantityReceived.String(),
						"requested":         receipt.Quantity.String(),
					})
			}
		}

		received := make([]payloads.ReceivedLine, 0, len(input.Lines))
		for _, receipt := range receiptsByItem(input.Lines, lines) {
			line := lines[receipt.LineID]
			total := line.QuantityReceived.Add(receipt.Quantity)
			if err := repo.UpdateLineReceived(ctx, line.ID, total); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update line received")
			}
			line.QuantityReceived = total
			if err := s.post(ctx, tx, current, *line, enums.InventoryTransactionPurchaseReceipt, receipt.Quantity, input.Notes); err != nil {
				return err
			}
			received = append(received, payloads.ReceivedLine{
				LineID:           line.ID,
				ItemID:           line.ItemID,
				Quantity:         receipt.Quantity,
				QuantityReceived: total,
			})
		}

		now := s.now().UTC()
		updates := map[string]any{}
		if current.FullyReceived() {
			next, err := Lifecycle.Next(current.Status, enums.PurchaseOrderActionReceive)
			if err != nil {
				return err
			}
			updates["status"] = next
			updates["received_at"] = now
		}
		if err := repo.Update(ctx, current, updates); err != nil {
			return mapUpdateError(err)
		}
		order, err = repo.FindByID(ctx, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload purchase order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseOrderReceived,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.PurchaseOrderReceivedEvent{
				PurchaseOrderID: order.ID,
				Status:          order.Status,
				Lines:           received,
				ReceivedAt:      now,
			},
		})
	})
	s.observe(string(enums.PurchaseOrderActionReceive), err)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func validateReceipt(input ReceiveInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase order id is required")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line receipt is required")
	}
	seen := make(map[uuid.UUID]bool, len(input.Lines))
	for _, receipt := range input.Lines {
		if receipt.LineID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "line id is required")
		}
		if seen[receipt.LineID] {
			return pkgerrors.New(pkgerrors.CodeValidation, "line listed more than once").
				WithDetails(map[string]any{"line_id": receipt.LineID.String()})
		}
		seen[receipt.LineID] = true
		if !receipt.Quantity.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "received quantity must be greater than zero").
				WithDetails(map[string]any{"line_id": receipt.LineID.String()})
		}
	}
	return nil
}

// linesByItem and receiptsByItem order postings by item id so concurrent
// orders sharing items lock item rows in the same sequence.
func linesByItem(lines []models.PurchaseOrderLine) []models.PurchaseOrderLine {
	out := slices.Clone(lines)
	slices.SortStableFunc(out, func(a, b models.PurchaseOrderLine) int {
		return strings.Compare(a.ItemID.String(), b.ItemID.String())
	})
	return out
}

func receiptsByItem(receipts []LineReceipt, lines map[uuid.UUID]*models.PurchaseOrderLine) []LineReceipt {
	out := slices.Clone(receipts)
	slices.SortStableFunc(out, func(a, b LineReceipt) int {
		return strings.Compare(lines[a.LineID].ItemID.String(), lines[b.LineID].ItemID.String())
	})
	return out
}

func (s *service) post(ctx context.Context, tx *gorm.DB, order *models.PurchaseOrder, line models.PurchaseOrderLine, txnType enums.InventoryTransactionType, qty decimal.Decimal, notes string) error {
	if !qty.IsPositive() {
		return nil
	}
	lineID := line.ID
	_, err := s.ledger.Post(ctx, tx, ledger.Posting{
		ItemID:       line.ItemID,
		Type:         txnType,
		Quantity:     qty,
		SourceType:   enums.InventorySourcePurchaseOrder,
		SourceID:     &order.ID,
		SourceLineID: &lineID,
		Notes:        notes,
	})
	return err
}

func (s *service) observe(action string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			outcome = string(typed.Code())
		}
	}
	s.metrics.Observe("purchase_order", action, outcome)
}

func mapLoadError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found").
			WithDetails(map[string]any{"purchase_order_id": id.String()})
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase order")
}

func mapUpdateError(err error) error {
	if errors.Is(err, dbpkg.ErrStaleVersion) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "purchase order was modified concurrently")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update purchase order")
}
