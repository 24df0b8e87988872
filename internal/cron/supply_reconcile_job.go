package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/internal/catalog"
	"github.com/angelmondragon/shopfloor-backend/internal/ledger"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ledgerPoster interface {
	Post(ctx context.Context, tx *gorm.DB, posting ledger.Posting) (*models.InventoryTransaction, error)
}

type supplyCalculator interface {
	ExpectedIncoming(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (decimal.Decimal, error)
}

type SupplyReconcileJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Catalog catalog.Repository
	Supply  supplyCalculator
	Ledger  ledgerPoster
	Outbox  outboxEmitter
}

// NewSupplyReconcileJob builds the job that realigns every item's incoming
// bucket with its open purchase and production orders.
func NewSupplyReconcileJob(params SupplyReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Supply == nil {
		return nil, fmt.Errorf("supply calculator required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &supplyReconcileJob{
		logg:    params.Logger,
		db:      params.DB,
		catalog: params.Catalog,
		supply:  params.Supply,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
	}, nil
}

type supplyReconcileJob struct {
	logg    *logger.Logger
	db      txRunner
	catalog catalog.Repository
	supply  supplyCalculator
	ledger  ledgerPoster
	outbox  outboxEmitter
}

func (j *supplyReconcileJob) Name() string { return "supply-reconcile" }

func (j *supplyReconcileJob) Run(ctx context.Context) error {
	items, err := j.catalog.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	var errs error
	corrected := 0
	for _, item := range items {
		changed, err := j.reconcileItem(ctx, item.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", item.SKU, err))
			continue
		}
		if changed {
			corrected++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"items":     len(items),
		"corrected": corrected,
	})
	j.logg.Info(logCtx, "supply reconcile loop complete")
	return errs
}

// reconcileItem recomputes expected supply with the item row locked so no
// order transition can move the bucket between the read and the correction.
func (j *supplyReconcileJob) reconcileItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	changed := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := j.catalog.WithTx(tx).FindItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		expected, err := j.supply.ExpectedIncoming(ctx, tx, itemID)
		if err != nil {
			return err
		}
		drift := expected.Sub(item.IncomingQty)
		if drift.IsZero() {
			return nil
		}
		if _, err := j.ledger.Post(ctx, tx, ledger.Posting{
			ItemID:     itemID,
			Type:       enums.InventoryTransactionSupplyCorrection,
			Quantity:   drift,
			SourceType: enums.InventorySourceReconcile,
			Notes:      fmt.Sprintf("incoming %s recomputed as %s", item.IncomingQty, expected),
		}); err != nil {
			return err
		}
		changed = true

		logCtx := j.logg.WithFields(ctx, map[string]any{
			"item_id":  itemID.String(),
			"sku":      item.SKU,
			"previous": item.IncomingQty.String(),
			"expected": expected.String(),
		})
		j.logg.Warn(logCtx, "incoming supply drift corrected")

		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSupplyReconciled,
			AggregateType: enums.AggregateItem,
			AggregateID:   itemID,
			Version:       1,
			Data: payloads.SupplyReconciledEvent{
				ItemID:     itemID,
				Previous:   item.IncomingQty,
				Recomputed: expected,
			},
		})
	})
	return changed, err
}
