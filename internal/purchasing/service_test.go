package purchasing

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/internal/catalog"
	"github.com/angelmondragon/shopfloor-backend/internal/ledger"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type fixture struct {
	conn *gorm.DB
	svc  Service
	bolt *models.Item
	nut  *models.Item
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	items := catalog.NewRepository(conn)

	bolt := &models.Item{SKU: "BOLT", Name: "Bolt", Type: enums.ItemTypeRawMaterial}
	nut := &models.Item{SKU: "NUT", Name: "Nut", Type: enums.ItemTypeRawMaterial, OnHandQty: d("10")}
	require.NoError(t, items.CreateItem(ctx, bolt))
	require.NoError(t, items.CreateItem(ctx, nut))

	events := outbox.NewService(outbox.NewRepository(conn), nil)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), client, events)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repository: NewRepository(conn),
		Items:      items,
		Ledger:     ledgerSvc,
		Tx:         client,
		Outbox:     events,
	})
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, bolt: bolt, nut: nut}
}

// shipped returns a shipped PO for 10 bolts and 5 nuts.
func (f fixture) shipped(t *testing.T) *models.PurchaseOrder {
	t.Helper()
	order := f.draft(t)
	f.move(t, order.ID, enums.PurchaseOrderActionPlace, enums.PurchaseOrderActionShip)
	got, err := f.svc.GetPurchaseOrder(context.Background(), order.ID)
	require.NoError(t, err)
	return got
}

func (f fixture) draft(t *testing.T) *models.PurchaseOrder {
	t.Helper()
	order, err := f.svc.CreatePurchaseOrder(context.Background(), CreateInput{
		SupplierRef: "FASTENAL",
		Lines: []LineInput{
			{ItemID: f.bolt.ID, Quantity: d("10"), UnitCost: d("0.12")},
			{ItemID: f.nut.ID, Quantity: d("5"), UnitCost: d("0.05")},
		},
	})
	require.NoError(t, err)
	return order
}

func (f fixture) move(t *testing.T, id uuid.UUID, actions ...enums.PurchaseOrderAction) *models.PurchaseOrder {
	t.Helper()
	var order *models.PurchaseOrder
	for _, action := range actions {
		var err error
		order, err = f.svc.TransitionPurchaseOrder(context.Background(), TransitionInput{OrderID: id, Action: action})
		require.NoError(t, err)
	}
	return order
}

func (f fixture) receive(order *models.PurchaseOrder, bolts, nuts string) (*models.PurchaseOrder, error) {
	var lines []LineReceipt
	if bolts != "" {
		lines = append(lines, LineReceipt{LineID: order.Lines[0].ID, Quantity: d(bolts)})
	}
	if nuts != "" {
		lines = append(lines, LineReceipt{LineID: order.Lines[1].ID, Quantity: d(nuts)})
	}
	return f.svc.ReceivePurchaseOrderLines(context.Background(), ReceiveInput{OrderID: order.ID, Lines: lines, Notes: "dock 3"})
}

func (f fixture) stock(t *testing.T, item *models.Item) models.Item {
	t.Helper()
	var got models.Item
	require.NoError(t, f.conn.First(&got, "id = ?", item.ID).Error)
	return got
}

func (f fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestLifecycleTable(t *testing.T) {
	assert.True(t, Lifecycle.Can(enums.PurchaseOrderStatusDraft, enums.PurchaseOrderActionPlace))
	assert.True(t, Lifecycle.Can(enums.PurchaseOrderStatusShipped, enums.PurchaseOrderActionReceive))
	assert.True(t, Lifecycle.Can(enums.PurchaseOrderStatusShipped, enums.PurchaseOrderActionCancel))
	assert.False(t, Lifecycle.Can(enums.PurchaseOrderStatusDraft, enums.PurchaseOrderActionShip))
	assert.False(t, Lifecycle.Can(enums.PurchaseOrderStatusOrdered, enums.PurchaseOrderActionReceive))
	assert.False(t, Lifecycle.Can(enums.PurchaseOrderStatusReceived, enums.PurchaseOrderActionCancel))
	assert.Empty(t, Lifecycle.Actions(enums.PurchaseOrderStatusClosed))
}

func TestCreatePurchaseOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateInput
		code  pkgerrors.Code
	}{
		{"missing supplier", CreateInput{Lines: []LineInput{{ItemID: f.bolt.ID, Quantity: d("1")}}}, pkgerrors.CodeValidation},
		{"no lines", CreateInput{SupplierRef: "ACME"}, pkgerrors.CodeValidation},
		{"zero quantity", CreateInput{SupplierRef: "ACME", Lines: []LineInput{{ItemID: f.bolt.ID, Quantity: d("0")}}}, pkgerrors.CodeValidation},
		{"negative cost", CreateInput{SupplierRef: "ACME", Lines: []LineInput{{ItemID: f.bolt.ID, Quantity: d("1"), UnitCost: d("-1")}}}, pkgerrors.CodeValidation},
		{"unknown item", CreateInput{SupplierRef: "ACME", Lines: []LineInput{{ItemID: uuid.New(), Quantity: d("1")}}}, pkgerrors.CodeUnknownItem},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreatePurchaseOrder(ctx, tc.input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}

	order := f.draft(t)
	assert.Equal(t, enums.PurchaseOrderStatusDraft, order.Status)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, 1, order.Lines[0].LineNo)
}

func TestPlacePlansSupplyPerLine(t *testing.T) {
	f := newFixture(t)
	order := f.draft(t)

	placed := f.move(t, order.ID, enums.PurchaseOrderActionPlace)
	assert.Equal(t, enums.PurchaseOrderStatusOrdered, placed.Status)
	assert.NotNil(t, placed.OrderedAt)

	assert.True(t, f.stock(t, f.bolt).IncomingQty.Equal(d("10")))
	assert.True(t, f.stock(t, f.nut).IncomingQty.Equal(d("5")))
	assert.EqualValues(t, 2, f.count(t, &models.InventoryTransaction{}, "source_id = ? AND transaction_type = ?", order.ID, enums.InventoryTransactionSupplyPlanned))
}

func TestIllegalTransitionsAreReported(t *testing.T) {
	f := newFixture(t)
	order := f.draft(t)

	_, err := f.svc.TransitionPurchaseOrder(context.Background(), TransitionInput{OrderID: order.ID, Action: enums.PurchaseOrderActionShip})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "draft", details["current"])
	assert.Equal(t, "ship", details["action"])

	f.move(t, order.ID, enums.PurchaseOrderActionPlace)
	placed, err := f.svc.GetPurchaseOrder(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = f.receive(placed, "1", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	_, err = f.svc.TransitionPurchaseOrder(context.Background(), TransitionInput{OrderID: order.ID, Action: enums.PurchaseOrderActionReceive})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPartialReceiptsAdvanceToReceivedOnLastCall(t *testing.T) {
	f := newFixture(t)
	order := f.shipped(t)

	got, err := f.receive(order, "4", "5")
	require.NoError(t, err)
	assert.Equal(t, enums.PurchaseOrderStatusShipped, got.Status)
	assert.True(t, got.Lines[0].QuantityReceived.Equal(d("4")))
	assert.True(t, got.Lines[1].QuantityReceived.Equal(d("5")))

	got, err = f.receive(order, "6", "")
	require.NoError(t, err)
	assert.Equal(t, enums.PurchaseOrderStatusReceived, got.Status)
	assert.NotNil(t, got.ReceivedAt)
	assert.True(t, got.Lines[0].QuantityReceived.Equal(d("10")))

	bolt := f.stock(t, f.bolt)
	assert.True(t, bolt.OnHandQty.Equal(d("10")))
	assert.True(t, bolt.IncomingQty.IsZero())
	nut := f.stock(t, f.nut)
	assert.True(t, nut.OnHandQty.Equal(d("15")))
	assert.True(t, nut.IncomingQty.IsZero())

	assert.EqualValues(t, 3, f.count(t, &models.InventoryTransaction{}, "transaction_type = ?", enums.InventoryTransactionPurchaseReceipt))
	assert.EqualValues(t, 2, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPurchaseOrderReceived))

	closed := f.move(t, order.ID, enums.PurchaseOrderActionClose)
	assert.Equal(t, enums.PurchaseOrderStatusClosed, closed.Status)
}

func TestOverReceiptAppliesNothing(t *testing.T) {
	f := newFixture(t)
	order := f.shipped(t)

	_, err := f.receive(order, "3", "6")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOverReceipt))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, order.Lines[1].ID.String(), details["line_id"])
	assert.Equal(t, "5", details["quantity_ordered"])
	assert.Equal(t, "6", details["requested"])

	got, err := f.svc.GetPurchaseOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, got.Lines[0].QuantityReceived.IsZero())
	assert.Equal(t, order.Version, got.Version)
	assert.True(t, f.stock(t, f.bolt).OnHandQty.IsZero())
	assert.Zero(t, f.count(t, &models.InventoryTransaction{}, "transaction_type = ?", enums.InventoryTransactionPurchaseReceipt))
}

func TestReceiveValidation(t *testing.T) {
	f := newFixture(t)
	order := f.shipped(t)
	ctx := context.Background()
	bolt := order.Lines[0].ID

	cases := []struct {
		name  string
		lines []LineReceipt
	}{
		{"no lines", nil},
		{"zero quantity", []LineReceipt{{LineID: bolt, Quantity: d("0")}}},
		{"duplicate line", []LineReceipt{{LineID: bolt, Quantity: d("1")}, {LineID: bolt, Quantity: d("1")}}},
		{"foreign line", []LineReceipt{{LineID: uuid.New(), Quantity: d("1")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ReceivePurchaseOrderLines(ctx, ReceiveInput{OrderID: order.ID, Lines: tc.lines})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestConcurrentReceiptsCannotOverfill(t *testing.T) {
	f := newFixture(t)
	order := f.shipped(t)

	const callers = 3
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.receive(order, "10", "5")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition), pkgerrors.IsCode(err, pkgerrors.CodeOverReceipt):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, rejected)
	assert.True(t, f.stock(t, f.bolt).OnHandQty.Equal(d("10")))
}

func TestCancelReturnsOutstandingSupply(t *testing.T) {
	f := newFixture(t)
	order := f.shipped(t)
	_, err := f.receive(order, "4", "")
	require.NoError(t, err)

	cancelled := f.move(t, order.ID, enums.PurchaseOrderActionCancel)
	assert.Equal(t, enums.PurchaseOrderStatusCancelled, cancelled.Status)

	bolt := f.stock(t, f.bolt)
	assert.True(t, bolt.OnHandQty.Equal(d("4")))
	assert.True(t, bolt.IncomingQty.IsZero())
	assert.True(t, f.stock(t, f.nut).IncomingQty.IsZero())

	draft := f.draft(t)
	f.move(t, draft.ID, enums.PurchaseOrderActionCancel)
	assert.Zero(t, f.count(t, &models.InventoryTransaction{}, "source_id = ?", draft.ID))
}

func TestPostingsFollowItemOrder(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000001")
	lines := []models.PurchaseOrderLine{
		{ID: uuid.New(), ItemID: high, LineNo: 1},
		{ID: uuid.New(), ItemID: low, LineNo: 2},
	}

	sorted := linesByItem(lines)
	assert.Equal(t, []uuid.UUID{low, high}, []uuid.UUID{sorted[0].ItemID, sorted[1].ItemID})
	assert.Equal(t, high, lines[0].ItemID, "input order must be left untouched")

	byID := map[uuid.UUID]*models.PurchaseOrderLine{lines[0].ID: &lines[0], lines[1].ID: &lines[1]}
	receipts := receiptsByItem([]LineReceipt{
		{LineID: lines[0].ID, Quantity: d("1")},
		{LineID: lines[1].ID, Quantity: d("2")},
	}, byID)
	require.Len(t, receipts, 2)
	assert.Equal(t, lines[1].ID, receipts[0].LineID)
	assert.Equal(t, lines[0].ID, receipts[1].LineID)
}
