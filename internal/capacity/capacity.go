// Package capacity aggregates routing time for an order quantity.
package capacity

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
)

var minutesPerHour = decimal.NewFromInt(60)

// RoutingSource supplies the routing operations of a product.
type RoutingSource interface {
	ListRoutingOperations(ctx context.Context, productID uuid.UUID) ([]models.RoutingOperation, error)
}

// OperationLoad is the time one routing operation needs for a quantity, in minutes.
type OperationLoad struct {
	OperationID    uuid.UUID       `json:"operation_id"`
	Sequence       int             `json:"sequence"`
	WorkCenterID   string          `json:"work_center_id"`
	Description    string          `json:"description,omitempty"`
	SetupTime      decimal.Decimal `json:"setup_time"`
	RunTimePerUnit decimal.Decimal `json:"run_time_per_unit"`
	Quantity       decimal.Decimal `json:"quantity"`
	TotalTime      decimal.Decimal `json:"total_time"`
}

// WorkCenterLoad sums operation loads on one work center.
type WorkCenterLoad struct {
	WorkCenterID string          `json:"work_center_id"`
	Operations   int             `json:"operations"`
	TotalMinutes decimal.Decimal `json:"total_minutes"`
	TotalHours   decimal.Decimal `json:"total_hours"`
}

// Calculator turns a product's routing into per-operation work center load.
type Calculator struct {
	routing RoutingSource
}

// NewCalculator requires a routing source.
func NewCalculator(routing RoutingSource) (*Calculator, error) {
	if routing == nil {
		return nil, fmt.Errorf("routing source required")
	}
	return &Calculator{routing: routing}, nil
}

// Capacity returns one load per routing operation in sequence order. A product
// without routing yields an empty list.
func (c *Calculator) Capacity(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) ([]OperationLoad, error) {
	if !quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
			WithDetails(map[string]any{"quantity": quantity.String()})
	}
	ops, err := c.routing.ListRoutingOperations(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load routing")
	}
	return Compute(ops, quantity), nil
}

// Compute applies total_time = setup + run_per_unit * quantity to each operation.
func Compute(ops []models.RoutingOperation, quantity decimal.Decimal) []OperationLoad {
	sorted := append([]models.RoutingOperation(nil), ops...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	loads := make([]OperationLoad, 0, len(sorted))
	for _, op := range sorted {
		loads = append(loads, OperationLoad{
			OperationID:    op.ID,
			Sequence:       op.Sequence,
			WorkCenterID:   op.WorkCenterID,
			Description:    op.Description,
			SetupTime:      op.SetupTime,
			RunTimePerUnit: op.RunTimePerUnit,
			Quantity:       quantity,
			TotalTime:      op.SetupTime.Add(op.RunTimePerUnit.Mul(quantity)),
		})
	}
	return loads
}

// TotalMinutes sums the total time of every load.
func TotalMinutes(loads []OperationLoad) decimal.Decimal {
	total := decimal.Zero
	for _, l := range loads {
		total = total.Add(l.TotalTime)
	}
	return total
}

// TotalHours is TotalMinutes / 60, rounded to four places.
func TotalHours(loads []OperationLoad) decimal.Decimal {
	return toHours(TotalMinutes(loads))
}

// SummarizeByWorkCenter groups loads per work center in first-seen order.
func SummarizeByWorkCenter(loads []OperationLoad) []WorkCenterLoad {
	index := make(map[string]int)
	var out []WorkCenterLoad
	for _, l := range loads {
		i, ok := index[l.WorkCenterID]
		if !ok {
			i = len(out)
			index[l.WorkCenterID] = i
			out = append(out, WorkCenterLoad{WorkCenterID: l.WorkCenterID, TotalMinutes: decimal.Zero})
		}
		out[i].Operations++
		out[i].TotalMinutes = out[i].TotalMinutes.Add(l.TotalTime)
	}
	for i := range out {
		out[i].TotalHours = toHours(out[i].TotalMinutes)
	}
	return out
}

func toHours(minutes decimal.Decimal) decimal.Decimal {
	return minutes.Div(minutesPerHour).Round(4)
}
