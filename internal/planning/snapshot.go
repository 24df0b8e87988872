package planning

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/internal/catalog"
	"github.com/angelmondragon/shopfloor-backend/internal/netting"
)

// catalogSnapshot reads the stock position of all requested items in one query.
type catalogSnapshot struct {
	items catalog.Repository
}

// NewCatalogSnapshot adapts the catalog repository to a netting snapshot provider.
func NewCatalogSnapshot(items catalog.Repository) netting.SnapshotProvider {
	return &catalogSnapshot{items: items}
}

func (s *catalogSnapshot) Snapshot(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]netting.ItemSnapshot, error) {
	rows, err := s.items.FindItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]netting.ItemSnapshot, len(rows))
	for _, item := range rows {
		out[item.ID] = netting.ItemSnapshot{
			ItemID:        item.ID,
			SKU:           item.SKU,
			UnitOfMeasure: item.UnitOfMeasure,
			OnHand:        item.OnHandQty,
			Allocated:     item.AllocatedQty,
			Incoming:      item.IncomingQty,
			SafetyStock:   item.SafetyStock,
		}
	}
	return out, nil
}
