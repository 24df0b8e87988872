// Package production runs production orders through their lifecycle and
// keeps the ledger's allocated and incoming buckets in step with them.
package production

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/internal/bom"
	"github.com/angelmondragon/shopfloor-backend/internal/catalog"
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

type transitionRecorder interface {
	Observe(entity, action, outcome string)
}

type Service interface {
	CreateProductionOrder(ctx context.Context, input CreateInput) (*models.ProductionOrder, error)
	CreateDraft(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity decimal.Decimal, salesOrderID *uuid.UUID) (*models.ProductionOrder, error)
	GetProductionOrder(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error)
	TransitionProductionOrder(ctx context.Context, input TransitionInput) (*models.ProductionOrder, error)
	SplitProductionOrder(ctx context.Context, input SplitInput) (*SplitResult, error)
}

type CreateInput struct {
	ProductID    uuid.UUID
	Quantity     decimal.Decimal
	SalesOrderID *uuid.UUID
}

// TransitionInput requests action on a production order. Quantity is the
// increment for report, the cumulative completed quantity for complete
// (optional) and the carved-off quantity for split.
type TransitionInput struct {
	OrderID  uuid.UUID
	Action   enums.ProductionOrderAction
	Quantity *decimal.Decimal
	Reason   string
	Actor    *outbox.Actor
}

type SplitInput struct {
	OrderID  uuid.UUID
	Quantity decimal.Decimal
	Actor    *outbox.Actor
}

type SplitResult struct {
	Source *models.ProductionOrder `json:"source"`
	Child  *models.ProductionOrder `json:"child"`
}

type ServiceParams struct {
	Repository Repository
	Catalog    catalog.Repository
	Ledger     ledger.Service
	Tx         txRunner
	Outbox     outboxPublisher
	Metrics    transitionRecorder
	Now        func() time.Time
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	ledger  ledger.Service
	tx      txRunner
	outbox  outboxPublisher
	metrics transitionRecorder
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("production repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
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
		catalog: params.Catalog,
		ledger:  params.Ledger,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (s *service) CreateProductionOrder(ctx context.Context, input CreateInput) (*models.ProductionOrder, error) {
	var order *models.ProductionOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.CreateDraft(ctx, tx, input.ProductID, input.Quantity, input.SalesOrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CreateDraft inserts a draft order using the caller's transaction. Drafts
// touch no stock bucket until released.
func (s *service) CreateDraft(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity decimal.Decimal, salesOrderID *uuid.UUID) (*models.ProductionOrder, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if _, err := s.catalog.WithTx(tx).FindItem(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product").
				WithDetails(map[string]any{"product_id": productID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	order := &models.ProductionOrder{
		ProductID:       productID,
		SalesOrderID:    salesOrderID,
		Status:          enums.ProductionOrderStatusDraft,
		QuantityOrdered: quantity,
		Version:         1,
	}
	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create production order")
	}
	return order, nil
}

func (s *service) GetProductionOrder(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err, id)
	}
	return order, nil
}

// TransitionProductionOrder applies one lifecycle action together with its
// ledger postings. Split is routed through SplitProductionOrder and returns
// the reduced source order.
func (s *service) TransitionProductionOrder(ctx context.Context, input TransitionInput) (*models.ProductionOrder, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "production order id is required")
	}
	if input.Action == enums.ProductionOrderActionSplit {
		if input.Quantity == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity is required to split")
		}
		result, err := s.SplitProductionOrder(ctx, SplitInput{OrderID: input.OrderID, Quantity: *input.Quantity, Actor: input.Actor})
		if err != nil {
			return nil, err
		}
		return result.Source, nil
	}

	var order *models.ProductionOrder
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
		p := &poster{svc: s, ctx: ctx, tx: tx, order: current}
		updates := map[string]any{}
		if next != from {
			updates["status"] = next
		}

		switch input.Action {
		case enums.ProductionOrderActionRelease:
			if err := p.release(); err != nil {
				return err
			}
			updates["released_at"] = now
		case enums.ProductionOrderActionStart:
			updates["started_at"] = now
		case enums.ProductionOrderActionReport:
			if input.Quantity == nil || !input.Quantity.IsPositive() {
				return pkgerrors.New(pkgerrors.CodeValidation, "report quantity must be greater than zero")
			}
			completed := current.QuantityCompleted.Add(*input.Quantity)
			if err := checkCompleted(current, completed); err != nil {
				return err
			}
			if err := p.credit(completed); err != nil {
				return err
			}
			updates["quantity_completed"] = completed
			updates["quantity_credited"] = completed
		case enums.ProductionOrderActionComplete:
			completed := current.QuantityCompleted
			if input.Quantity != nil {
				completed = *input.Quantity
			}
			if !completed.IsPositive() {
				return pkgerrors.New(pkgerrors.CodeValidation, "completed quantity must be greater than zero")
			}
			if err := checkCompleted(current, completed); err != nil {
				return err
			}
			if err := p.credit(completed); err != nil {
				return err
			}
			if err := p.releaseRemainder(); err != nil {
				return err
			}
			updates["quantity_completed"] = completed
			updates["quantity_credited"] = completed
			updates["completed_at"] = now
		case enums.ProductionOrderActionScrap:
			if err := p.releaseRemainder(); err != nil {
				return err
			}
			if reason := strings.TrimSpace(input.Reason); reason != "" {
				updates["scrap_reason"] = reason
			}
			updates["scrapped_at"] = now
		}

		if err := repo.Update(ctx, current, updates); err != nil {
			return mapUpdateError(err)
		}
		order, err = repo.FindByID(ctx, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload production order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductionOrderStatusChanged,
			AggregateType: enums.AggregateProductionOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.ProductionOrderStatusChangedEvent{
				ProductionOrderID: order.ID,
				SalesOrderID:      order.SalesOrderID,
				ProductID:         order.ProductID,
				From:              from,
				To:                next,
				Action:            input.Action,
				QuantityCompleted: order.QuantityCompleted,
				ChangedAt:         now,
			},
		})
	})
	s.observe(string(input.Action), err)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SplitProductionOrder carves quantity off an open order into a new draft
// child. Allocation and planned supply for the carved quantity leave the
// source so the child can claim them on its own release.
func (s *service) SplitProductionOrder(ctx context.Context, input SplitInput) (*SplitResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "production order id is required")
	}
	if !input.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "split quantity must be greater than zero")
	}

	result := &SplitResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		source, err := repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return mapLoadError(err, input.OrderID)
		}
		if _, err := Lifecycle.Next(source.Status, enums.ProductionOrderActionSplit); err != nil {
			return err
		}
		remaining := source.QuantityOrdered.Sub(source.QuantityCompleted)
		if input.Quantity.GreaterThanOrEqual(remaining) {
			return pkgerrors.New(pkgerrors.CodeValidation, "split quantity must be less than the remaining quantity").
				WithDetails(map[string]any{
					"production_order_id": source.ID.String(),
					"remaining":           remaining.String(),
					"requested":           input.Quantity.String(),
				})
		}

		p := &poster{svc: s, ctx: ctx, tx: tx, order: source}
		if err := p.releasePortion(input.Quantity); err != nil {
			return err
		}

		if err := repo.Update(ctx, source, map[string]any{
			"quantity_ordered": source.QuantityOrdered.Sub(input.Quantity),
		}); err != nil {
			return mapUpdateError(err)
		}
		child := &models.ProductionOrder{
			ProductID:       source.ProductID,
			SalesOrderID:    source.SalesOrderID,
			ParentOrderID:   &source.ID,
			Status:          enums.ProductionOrderStatusDraft,
			QuantityOrdered: input.Quantity,
			Version:         1,
		}
		if err := repo.Create(ctx, child); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create split order")
		}

		result.Child = child
		result.Source, err = repo.FindByID(ctx, source.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload production order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductionOrderSplit,
			AggregateType: enums.AggregateProductionOrder,
			AggregateID:   source.ID,
			Actor:         input.Actor,
			Version:       1,
			Data: payloads.ProductionOrderSplitEvent{
				ParentOrderID: source.ID,
				ChildOrderID:  child.ID,
				Quantity:      input.Quantity,
			},
		})
	})
	s.observe(string(enums.ProductionOrderActionSplit), err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkCompleted(order *models.ProductionOrder, completed decimal.Decimal) error {
	details := map[string]any{
		"production_order_id": order.ID.String(),
		"quantity_ordered":    order.QuantityOrdered.String(),
		"quantity_completed":  order.QuantityCompleted.String(),
		"requested":           completed.String(),
	}
	if completed.GreaterThan(order.QuantityOrdered) {
		return pkgerrors.New(pkgerrors.CodeValidation, "completed quantity exceeds quantity ordered").WithDetails(details)
	}
	if completed.LessThan(order.QuantityCompleted) {
		return pkgerrors.New(pkgerrors.CodeValidation, "completed quantity cannot decrease").WithDetails(details)
	}
	return nil
}

// poster writes the ledger rows for one production order inside tx.
type poster struct {
	svc   *service
	ctx   context.Context
	tx    *gorm.DB
	order *models.ProductionOrder
}

func (p *poster) post(itemID uuid.UUID, txnType enums.InventoryTransactionType, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return nil
	}
	_, err := p.svc.ledger.Post(p.ctx, p.tx, ledger.Posting{
		ItemID:     itemID,
		Type:       txnType,
		Quantity:   qty,
		SourceType: enums.InventorySourceProductionOrder,
		SourceID:   &p.order.ID,
	})
	return err
}

// components explodes the product at qty. Demands come back in item id order
// so concurrent transitions lock item rows in the same sequence.
func (p *poster) components(qty decimal.Decimal) ([]bom.ComponentDemand, error) {
	items := p.svc.catalog.WithTx(p.tx)
	engine, err := bom.NewEngine(items, items)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build bom engine")
	}
	demands, err := engine.Explode(p.ctx, p.order.ProductID, qty)
	if err != nil {
		return nil, err
	}
	sort.Slice(demands, func(i, j int) bool {
		return demands[i].ItemID.String() < demands[j].ItemID.String()
	})
	return demands, nil
}

func (p *poster) release() error {
	demands, err := p.components(p.order.QuantityOrdered)
	if err != nil {
		return err
	}
	for _, d := range demands {
		if err := p.post(d.ItemID, enums.InventoryTransactionAllocation, d.GrossQuantity); err != nil {
			return err
		}
	}
	return p.post(p.order.ProductID, enums.InventoryTransactionSupplyPlanned, p.order.QuantityOrdered)
}

// credit receives finished goods up to completed and backflushes the
// components consumed by the increment.
func (p *poster) credit(completed decimal.Decimal) error {
	increment := completed.Sub(p.order.QuantityCredited)
	if !increment.IsPositive() {
		return nil
	}
	demands, err := p.components(increment)
	if err != nil {
		return err
	}
	for _, d := range demands {
		if err := p.post(d.ItemID, enums.InventoryTransactionComponentIssue, d.GrossQuantity); err != nil {
			return err
		}
	}
	return p.post(p.order.ProductID, enums.InventoryTransactionProductionReceipt, increment)
}

// releaseRemainder returns whatever the order still holds: outstanding
// component allocations and finished-goods supply not yet received.
func (p *poster) releaseRemainder() error {
	balances, err := p.svc.ledger.Balances(p.ctx, p.tx, enums.InventorySourceProductionOrder, p.order.ID)
	if err != nil {
		return err
	}
	for _, itemID := range sortedItems(balances) {
		b := balances[itemID]
		if err := p.post(itemID, enums.InventoryTransactionDeallocation, b.OutstandingAllocation()); err != nil {
			return err
		}
		if err := p.post(itemID, enums.InventoryTransactionSupplyCancelled, b.OutstandingSupply()); err != nil {
			return err
		}
	}
	return nil
}

// releasePortion moves qty worth of allocation and planned supply off the
// order. Drafts hold neither so nothing is posted for them.
func (p *poster) releasePortion(qty decimal.Decimal) error {
	balances, err := p.svc.ledger.Balances(p.ctx, p.tx, enums.InventorySourceProductionOrder, p.order.ID)
	if err != nil {
		return err
	}
	if len(balances) == 0 {
		return nil
	}
	demands, err := p.components(qty)
	if err != nil {
		return err
	}
	for _, d := range demands {
		outstanding := balances[d.ItemID].OutstandingAllocation()
		if err := p.post(d.ItemID, enums.InventoryTransactionDeallocation, decimal.Min(d.GrossQuantity, outstanding)); err != nil {
			return err
		}
	}
	supply := balances[p.order.ProductID].OutstandingSupply()
	return p.post(p.order.ProductID, enums.InventoryTransactionSupplyCancelled, decimal.Min(qty, supply))
}

func sortedItems(balances map[uuid.UUID]ledger.Balance) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
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
	s.metrics.Observe("production_order", action, outcome)
}

func mapLoadError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "production order not found").
			WithDetails(map[string]any{"production_order_id": id.String()})
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load production order")
}

func mapUpdateError(err error) error {
	if errors.Is(err, dbpkg.ErrStaleVersion) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "production order was modified concurrently")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update production order")
}
