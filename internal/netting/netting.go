// Package netting nets scaled component demand against a stock snapshot.
package netting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/internal/bom"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
)

// ItemSnapshot is the stock position of one item at read time.
type ItemSnapshot struct {
	ItemID        uuid.UUID
	SKU           string
	UnitOfMeasure string
	OnHand        decimal.Decimal
	Allocated     decimal.Decimal
	Incoming      decimal.Decimal
	SafetyStock   decimal.Decimal
}

// SnapshotProvider loads the current stock position of the requested items.
// Items it does not know are simply absent from the result.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]ItemSnapshot, error)
}

// MaterialRequirement is the netted demand for one component.
type MaterialRequirement struct {
	ItemID            uuid.UUID       `json:"item_id"`
	SKU               string          `json:"sku"`
	UnitOfMeasure     string          `json:"unit_of_measure"`
	GrossQuantity     decimal.Decimal `json:"gross_quantity"`
	OnHand            decimal.Decimal `json:"on_hand"`
	Allocated         decimal.Decimal `json:"allocated"`
	Incoming          decimal.Decimal `json:"incoming"`
	SafetyStock       decimal.Decimal `json:"safety_stock"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	Unallocated       decimal.Decimal `json:"unallocated"`
	NetShortage       decimal.Decimal `json:"net_shortage"`
}

// HasShortage reports whether the requirement cannot be covered by supply.
func (r MaterialRequirement) HasShortage() bool {
	return r.NetShortage.IsPositive()
}

// Net loads a snapshot for every demanded item and nets each demand against it.
func Net(ctx context.Context, demands []bom.ComponentDemand, provider SnapshotProvider) ([]MaterialRequirement, error) {
	if provider == nil {
		return nil, fmt.Errorf("snapshot provider required")
	}
	if len(demands) == 0 {
		return []MaterialRequirement{}, nil
	}
	ids := make([]uuid.UUID, 0, len(demands))
	for _, d := range demands {
		ids = append(ids, d.ItemID)
	}
	snapshot, err := provider.Snapshot(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item snapshot")
	}
	return NetAgainst(demands, snapshot)
}

// NetAgainst nets demands against an already loaded snapshot. Allocated stock
// is reported but does not reduce supply.
func NetAgainst(demands []bom.ComponentDemand, snapshot map[uuid.UUID]ItemSnapshot) ([]MaterialRequirement, error) {
	out := make([]MaterialRequirement, 0, len(demands))
	for _, d := range demands {
		item, ok := snapshot[d.ItemID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnknownItem, "component missing from item catalog").
				WithDetails(map[string]any{"item_id": d.ItemID.String()})
		}
		supply := item.OnHand.Add(item.Incoming)
		out = append(out, MaterialRequirement{
			ItemID:            d.ItemID,
			SKU:               item.SKU,
			UnitOfMeasure:     item.UnitOfMeasure,
			GrossQuantity:     d.GrossQuantity,
			OnHand:            item.OnHand,
			Allocated:         item.Allocated,
			Incoming:          item.Incoming,
			SafetyStock:       item.SafetyStock,
			AvailableQuantity: supply,
			Unallocated:       item.OnHand.Sub(item.Allocated),
			NetShortage:       Shortage(d.GrossQuantity, supply, item.SafetyStock),
		})
	}
	return out, nil
}

// Shortage is max(0, gross - supply + safety).
func Shortage(gross, supply, safety decimal.Decimal) decimal.Decimal {
	shortage := gross.Sub(supply).Add(safety)
	if shortage.IsNegative() {
		return decimal.Zero
	}
	return shortage
}

// Scale multiplies gross quantities by factor. Demand obtained per unit must be
// scaled to the order quantity before netting because clamping is not linear.
func Scale(demands []bom.ComponentDemand, factor decimal.Decimal) []bom.ComponentDemand {
	out := make([]bom.ComponentDemand, len(demands))
	for i, d := range demands {
		out[i] = bom.ComponentDemand{ItemID: d.ItemID, GrossQuantity: d.GrossQuantity.Mul(factor)}
	}
	return out
}

// Shortages keeps only requirements with a positive net shortage.
func Shortages(reqs []MaterialRequirement) []MaterialRequirement {
	var out []MaterialRequirement
	for _, r := range reqs {
		if r.HasShortage() {
			out = append(out, r)
		}
	}
	return out
}
