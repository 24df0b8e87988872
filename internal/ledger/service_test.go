package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestApplyEffects(t *testing.T) {
	start := Stock{OnHand: d("10"), Allocated: d("4"), Incoming: d("6")}
	cases := []struct {
		name string
		typ  enums.InventoryTransactionType
		qty  string
		want Stock
	}{
		{"purchase receipt", enums.InventoryTransactionPurchaseReceipt, "5", Stock{d("15"), d("4"), d("1")}},
		{"receipt beyond incoming floors at zero", enums.InventoryTransactionPurchaseReceipt, "8", Stock{d("18"), d("4"), d("0")}},
		{"production receipt", enums.InventoryTransactionProductionReceipt, "2", Stock{d("12"), d("4"), d("4")}},
		{"component issue", enums.InventoryTransactionComponentIssue, "3", Stock{d("7"), d("1"), d("6")}},
		{"issue beyond allocation", enums.InventoryTransactionComponentIssue, "6", Stock{d("4"), d("0"), d("6")}},
		{"allocation", enums.InventoryTransactionAllocation, "2.5", Stock{d("10"), d("6.5"), d("6")}},
		{"deallocation", enums.InventoryTransactionDeallocation, "9", Stock{d("10"), d("0"), d("6")}},
		{"supply planned", enums.InventoryTransactionSupplyPlanned, "4", Stock{d("10"), d("4"), d("10")}},
		{"supply cancelled", enums.InventoryTransactionSupplyCancelled, "10", Stock{d("10"), d("4"), d("0")}},
		{"supply correction down", enums.InventoryTransactionSupplyCorrection, "-2", Stock{d("10"), d("4"), d("4")}},
		{"supply correction up", enums.InventoryTransactionSupplyCorrection, "3", Stock{d("10"), d("4"), d("9")}},
		{"adjustment down", enums.InventoryTransactionAdjustment, "-10", Stock{d("0"), d("4"), d("6")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Apply(start, tc.typ, d(tc.qty))
			require.NoError(t, err)
			assert.True(t, got.OnHand.Equal(tc.want.OnHand), "on hand %s", got.OnHand)
			assert.True(t, got.Allocated.Equal(tc.want.Allocated), "allocated %s", got.Allocated)
			assert.True(t, got.Incoming.Equal(tc.want.Incoming), "incoming %s", got.Incoming)
		})
	}
}

func TestApplyRejectsNegativeOnHand(t *testing.T) {
	start := Stock{OnHand: d("2"), Allocated: d("5")}

	_, err := Apply(start, enums.InventoryTransactionComponentIssue, d("3"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = Apply(start, enums.InventoryTransactionAdjustment, d("-2.0001"))
	require.Error(t, err)
}

type fixture struct {
	conn   *gorm.DB
	svc    Service
	client *db.Client
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	svc, err := NewService(NewRepository(conn), client, outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, client: client}
}

func (f fixture) item(t *testing.T, sku string, onHand string) *models.Item {
	t.Helper()
	item := &models.Item{SKU: sku, Name: sku, Type: enums.ItemTypeComponent, OnHandQty: d(onHand)}
	require.NoError(t, f.conn.Create(item).Error)
	return item
}

func (f fixture) reload(t *testing.T, id uuid.UUID) models.Item {
	t.Helper()
	var item models.Item
	require.NoError(t, f.conn.First(&item, "id = ?", id).Error)
	return item
}

func (f fixture) post(ctx context.Context, p Posting) (*models.InventoryTransaction, error) {
	var row *models.InventoryTransaction
	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		row, err = f.svc.Post(ctx, tx, p)
		return err
	})
	return row, err
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	require.Error(t, err)
}

func TestPostMovesBucketsAndAppendsRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bolt := f.item(t, "BOLT", "10")
	poID := uuid.New()

	row, err := f.post(ctx, Posting{
		ItemID:     bolt.ID,
		Type:       enums.InventoryTransactionSupplyPlanned,
		Quantity:   d("25"),
		SourceType: enums.InventorySourcePurchaseOrder,
		SourceID:   &poID,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, row.ID)

	_, err = f.post(ctx, Posting{
		ItemID:     bolt.ID,
		Type:       enums.InventoryTransactionPurchaseReceipt,
		Quantity:   d("10"),
		SourceType: enums.InventorySourcePurchaseOrder,
		SourceID:   &poID,
		Notes:      "  dock 2 ",
	})
	require.NoError(t, err)

	got := f.reload(t, bolt.ID)
	assert.True(t, got.OnHandQty.Equal(d("20")))
	assert.True(t, got.IncomingQty.Equal(d("15")))

	rows, err := f.svc.ListBySource(ctx, enums.InventorySourcePurchaseOrder, poID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[1].Notes)
	assert.Equal(t, "dock 2", *rows[1].Notes)
}

func TestPostUnknownItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.post(context.Background(), Posting{
		ItemID:     uuid.New(),
		Type:       enums.InventoryTransactionAllocation,
		Quantity:   d("1"),
		SourceType: enums.InventorySourceProductionOrder,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnknownItem))
}

func TestPostValidation(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "NUT", "5")
	cases := []Posting{
		{ItemID: item.ID, Type: enums.InventoryTransactionAllocation, Quantity: d("0"), SourceType: enums.InventorySourceManual},
		{ItemID: item.ID, Type: enums.InventoryTransactionPurchaseReceipt, Quantity: d("-1"), SourceType: enums.InventorySourceManual},
		{ItemID: item.ID, Type: "teleport", Quantity: d("1"), SourceType: enums.InventorySourceManual},
		{ItemID: item.ID, Type: enums.InventoryTransactionAllocation, Quantity: d("1")},
		{Type: enums.InventoryTransactionAllocation, Quantity: d("1"), SourceType: enums.InventorySourceManual},
	}
	for _, p := range cases {
		_, err := f.post(context.Background(), p)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "posting %+v", p)
	}
}

func TestPostInsufficientStockLeavesItemUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, "WASHER", "3")

	_, err := f.post(ctx, Posting{
		ItemID:     item.ID,
		Type:       enums.InventoryTransactionComponentIssue,
		Quantity:   d("4"),
		SourceType: enums.InventorySourceProductionOrder,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "WASHER", details["sku"])

	got := f.reload(t, item.ID)
	assert.True(t, got.OnHandQty.Equal(d("3")))

	var count int64
	require.NoError(t, f.conn.Model(&models.InventoryTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBalancesOutstandingAllocation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	screw := f.item(t, "SCREW", "100")
	plate := f.item(t, "PLATE", "100")
	orderID := uuid.New()

	for _, p := range []Posting{
		{ItemID: screw.ID, Type: enums.InventoryTransactionAllocation, Quantity: d("40")},
		{ItemID: plate.ID, Type: enums.InventoryTransactionAllocation, Quantity: d("10")},
		{ItemID: screw.ID, Type: enums.InventoryTransactionComponentIssue, Quantity: d("16")},
		{ItemID: screw.ID, Type: enums.InventoryTransactionDeallocation, Quantity: d("4")},
	} {
		p.SourceType = enums.InventorySourceProductionOrder
		p.SourceID = &orderID
		_, err := f.post(ctx, p)
		require.NoError(t, err)
	}

	var balances map[uuid.UUID]Balance
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		balances, err = f.svc.Balances(ctx, tx, enums.InventorySourceProductionOrder, orderID)
		return err
	}))
	require.Len(t, balances, 2)
	assert.True(t, balances[screw.ID].OutstandingAllocation().Equal(d("20")))
	assert.True(t, balances[screw.ID].Issued().Equal(d("16")))
	assert.True(t, balances[plate.ID].OutstandingAllocation().Equal(d("10")))

	got := f.reload(t, screw.ID)
	assert.True(t, got.AllocatedQty.Equal(d("20")))
	assert.True(t, got.OnHandQty.Equal(d("84")))
}

func TestBalanceOutstandingSupply(t *testing.T) {
	b := Balance{
		enums.InventoryTransactionSupplyPlanned:     d("10"),
		enums.InventoryTransactionProductionReceipt: d("4"),
		enums.InventoryTransactionSupplyCancelled:   d("1"),
	}
	assert.True(t, b.OutstandingSupply().Equal(d("5")))

	b[enums.InventoryTransactionPurchaseReceipt] = d("9")
	assert.True(t, b.OutstandingSupply().IsZero())
	assert.True(t, Balance{}.OutstandingSupply().IsZero())
}

func TestAdjustEmitsOutboxEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, "GASKET", "12")

	row, err := f.svc.Adjust(ctx, AdjustInput{ItemID: item.ID, Delta: d("-2"), Notes: "cycle count"})
	require.NoError(t, err)
	assert.Equal(t, enums.InventorySourceManual, row.SourceType)
	assert.True(t, f.reload(t, item.ID).OnHandQty.Equal(d("10")))

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventInventoryAdjusted, events[0].EventType)
	assert.Equal(t, item.ID, events[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.InventoryAdjustedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, row.ID, payload.TransactionID)
	assert.True(t, payload.Delta.Equal(d("-2")))
}

func TestAdjustValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, "SEAL", "1")

	_, err := f.svc.Adjust(ctx, AdjustInput{ItemID: item.ID, Delta: d("1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Adjust(ctx, AdjustInput{ItemID: item.ID, Notes: "noop"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Adjust(ctx, AdjustInput{ItemID: item.ID, Delta: d("-5"), Notes: "shrinkage"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListByItemPages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, "SPRING", "0")
	for i := 0; i < 3; i++ {
		_, err := f.post(ctx, Posting{
			ItemID:     item.ID,
			Type:       enums.InventoryTransactionAdjustment,
			Quantity:   d("1"),
			SourceType: enums.InventorySourceManual,
		})
		require.NoError(t, err)
	}

	first, err := f.svc.ListByItem(ctx, item.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Transactions, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListByItem(ctx, item.ID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Transactions, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, row := range append(first.Transactions, second.Transactions...) {
		seen[row.ID] = true
	}
	assert.Len(t, seen, 3)

	_, err = f.svc.ListByItem(ctx, item.ID, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
