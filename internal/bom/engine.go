// Package bom flattens multi-level bills of materials into scaled component demand.
package bom

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
)

// LineSource supplies the direct component lines of a parent item.
type LineSource interface {
	ComponentsOf(ctx context.Context, parentID uuid.UUID) ([]models.BOMLine, error)
}

// ItemLookup resolves catalog items.
type ItemLookup interface {
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
}

// ComponentDemand is the aggregated gross quantity of one leaf component.
type ComponentDemand struct {
	ItemID        uuid.UUID       `json:"item_id"`
	GrossQuantity decimal.Decimal `json:"gross_quantity"`
}

// DemandNode is one position in an exploded tree. The root carries the
// product and the ordered quantity.
type DemandNode struct {
	ItemID          uuid.UUID       `json:"item_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
	GrossQuantity   decimal.Decimal `json:"gross_quantity"`
	Level           int             `json:"level"`
	Children        []*DemandNode   `json:"children,omitempty"`
}

// IsLeaf reports whether the node has no components of its own.
func (n *DemandNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Engine explodes multi-level BOMs read from a line source.
type Engine struct {
	lines LineSource
	items ItemLookup
}

// NewEngine requires both the BOM lines and the item lookup.
func NewEngine(lines LineSource, items ItemLookup) (*Engine, error) {
	if lines == nil {
		return nil, fmt.Errorf("bom line source required")
	}
	if items == nil {
		return nil, fmt.Errorf("item lookup required")
	}
	return &Engine{lines: lines, items: items}, nil
}

// Explode returns one aggregated demand per distinct leaf component of
// productID for quantity units. A product without components yields no demand.
func (e *Engine) Explode(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) ([]ComponentDemand, error) {
	root, err := e.ExplodeTree(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}
	return Flatten(root), nil
}

// ExplodeTree returns the full demand tree. Any cycle fails the whole call.
func (e *Engine) ExplodeTree(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*DemandNode, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
			WithDetails(map[string]any{"quantity": quantity.String()})
	}
	if _, err := e.items.FindItem(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product").
				WithDetails(map[string]any{"product_id": productID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	w := &walker{lines: e.lines, memo: make(map[uuid.UUID][]models.BOMLine)}
	root := &DemandNode{ItemID: productID, QuantityPerUnit: decimal.NewFromInt(1), GrossQuantity: quantity}
	if err := w.expand(ctx, root, []uuid.UUID{productID}); err != nil {
		return nil, err
	}
	return root, nil
}

// walker holds per-call state. Component lists are memoized because shared
// subassemblies are revisited once per path.
type walker struct {
	lines LineSource
	memo  map[uuid.UUID][]models.BOMLine
}

func (w *walker) components(ctx context.Context, parentID uuid.UUID) ([]models.BOMLine, error) {
	if lines, ok := w.memo[parentID]; ok {
		return lines, nil
	}
	lines, err := w.lines.ComponentsOf(ctx, parentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bom lines")
	}
	w.memo[parentID] = lines
	return lines, nil
}

// expand attaches the children of node. path holds the active ancestors,
// node included.
func (w *walker) expand(ctx context.Context, node *DemandNode, path []uuid.UUID) error {
	lines, err := w.components(ctx, node.ItemID)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if line.QuantityPerUnit.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "bom line quantity must not be negative").
				WithDetails(map[string]any{
					"parent_item_id":    line.ParentItemID.String(),
					"component_item_id": line.ComponentItemID.String(),
				})
		}
		if idx := indexOf(path, line.ComponentItemID); idx >= 0 {
			return circularError(append(append([]uuid.UUID{}, path[idx:]...), line.ComponentItemID))
		}

		child := &DemandNode{
			ItemID:          line.ComponentItemID,
			QuantityPerUnit: line.QuantityPerUnit,
			GrossQuantity:   line.QuantityPerUnit.Mul(node.GrossQuantity),
			Level:           node.Level + 1,
		}
		node.Children = append(node.Children, child)

		next := make([]uuid.UUID, len(path), len(path)+1)
		copy(next, path)
		if err := w.expand(ctx, child, append(next, line.ComponentItemID)); err != nil {
			return err
		}
	}
	return nil
}

// Flatten sums leaf gross quantities per item in first-seen order. The root
// itself is never reported.
func Flatten(root *DemandNode) []ComponentDemand {
	if root == nil {
		return nil
	}
	index := make(map[uuid.UUID]int)
	var out []ComponentDemand
	var visit func(n *DemandNode)
	visit = func(n *DemandNode) {
		for _, child := range n.Children {
			if !child.IsLeaf() {
				visit(child)
				continue
			}
			if i, ok := index[child.ItemID]; ok {
				out[i].GrossQuantity = out[i].GrossQuantity.Add(child.GrossQuantity)
				continue
			}
			index[child.ItemID] = len(out)
			out = append(out, ComponentDemand{ItemID: child.ItemID, GrossQuantity: child.GrossQuantity})
		}
	}
	visit(root)
	return out
}

func indexOf(path []uuid.UUID, id uuid.UUID) int {
	for i, candidate := range path {
		if candidate == id {
			return i
		}
	}
	return -1
}

func circularError(cycle []uuid.UUID) *pkgerrors.Error {
	ids := make([]string, len(cycle))
	for i, id := range cycle {
		ids[i] = id.String()
	}
	return pkgerrors.Newf(pkgerrors.CodeCircularBOM, "bill of materials cycle through %s", ids[0]).
		WithDetails(map[string]any{"cycle": ids})
}
