package cron

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/internal/catalog"
	"github.com/angelmondragon/shopfloor-backend/internal/ledger"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func mustCreate(t *testing.T, conn *gorm.DB, rows ...any) {
	t.Helper()
	for _, row := range rows {
		if err := conn.Create(row).Error; err != nil {
			t.Fatalf("create %T: %v", row, err)
		}
	}
}

func newSupplyReconcileJob(t *testing.T, conn *gorm.DB) Job {
	t.Helper()
	client := db.NewFromConn(conn)
	events := outbox.NewService(outbox.NewRepository(conn), nil)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), client, events)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	job, err := NewSupplyReconcileJob(SupplyReconcileJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:      client,
		Catalog: catalog.NewRepository(conn),
		Supply:  NewSupplyRepository(),
		Ledger:  ledgerSvc,
		Outbox:  events,
	})
	if err != nil {
		t.Fatalf("NewSupplyReconcileJob: %v", err)
	}
	return job
}

func TestSupplyReconcileCorrectsDrift(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)

	bolt := &models.Item{SKU: "BOLT", Name: "Bolt", Type: enums.ItemTypeRawMaterial, IncomingQty: dec("25")}
	widget := &models.Item{SKU: "WIDGET", Name: "Widget", Type: enums.ItemTypeFinishedGood, IncomingQty: dec("3")}
	mustCreate(t, conn, bolt, widget)

	open := &models.PurchaseOrder{SupplierRef: "ACME", Status: enums.PurchaseOrderStatusShipped, Version: 1}
	cancelled := &models.PurchaseOrder{SupplierRef: "ACME", Status: enums.PurchaseOrderStatusCancelled, Version: 1}
	mustCreate(t, conn, open, cancelled)
	mustCreate(t, conn,
		&models.PurchaseOrderLine{PurchaseOrderID: open.ID, LineNo: 1, ItemID: bolt.ID, QuantityOrdered: dec("10"), QuantityReceived: dec("3")},
		&models.PurchaseOrderLine{PurchaseOrderID: cancelled.ID, LineNo: 1, ItemID: bolt.ID, QuantityOrdered: dec("40")},
		&models.ProductionOrder{ProductID: widget.ID, Status: enums.ProductionOrderStatusInProgress, QuantityOrdered: dec("5"), QuantityCredited: dec("2"), Version: 1},
		&models.ProductionOrder{ProductID: widget.ID, Status: enums.ProductionOrderStatusDraft, QuantityOrdered: dec("50"), Version: 1},
	)

	job := newSupplyReconcileJob(t, conn)
	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var got models.Item
	if err := conn.First(&got, "id = ?", bolt.ID).Error; err != nil {
		t.Fatalf("reload bolt: %v", err)
	}
	if !got.IncomingQty.Equal(dec("7")) {
		t.Fatalf("expected bolt incoming 7, got %s", got.IncomingQty)
	}
	if err := conn.First(&got, "id = ?", widget.ID).Error; err != nil {
		t.Fatalf("reload widget: %v", err)
	}
	if !got.IncomingQty.Equal(dec("3")) {
		t.Fatalf("widget incoming should be untouched, got %s", got.IncomingQty)
	}

	var corrections []models.InventoryTransaction
	if err := conn.Where("transaction_type = ?", enums.InventoryTransactionSupplyCorrection).Find(&corrections).Error; err != nil {
		t.Fatalf("load corrections: %v", err)
	}
	if len(corrections) != 1 {
		t.Fatalf("expected 1 correction, got %d", len(corrections))
	}
	if !corrections[0].Quantity.Equal(dec("-18")) {
		t.Fatalf("expected correction -18, got %s", corrections[0].Quantity)
	}
	if corrections[0].SourceType != enums.InventorySourceReconcile {
		t.Fatalf("unexpected source type %s", corrections[0].SourceType)
	}

	if err := job.Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	var events int64
	if err := conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventSupplyReconciled).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected a single supply_reconciled event across runs, got %d", events)
	}
}

func TestSupplyReconcileRaisesMissingIncoming(t *testing.T) {
	conn := dbtest.Open(t)
	nut := &models.Item{SKU: "NUT", Name: "Nut", Type: enums.ItemTypeRawMaterial}
	mustCreate(t, conn, nut)
	po := &models.PurchaseOrder{SupplierRef: "ACME", Status: enums.PurchaseOrderStatusOrdered, Version: 1}
	mustCreate(t, conn, po)
	mustCreate(t, conn, &models.PurchaseOrderLine{PurchaseOrderID: po.ID, LineNo: 1, ItemID: nut.ID, QuantityOrdered: dec("12.5")})

	if err := newSupplyReconcileJob(t, conn).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var got models.Item
	if err := conn.First(&got, "id = ?", nut.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.IncomingQty.Equal(dec("12.5")) {
		t.Fatalf("expected incoming 12.5, got %s", got.IncomingQty)
	}
}
