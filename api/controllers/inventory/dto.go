package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/internal/ledger"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type transactionResponse struct {
	ID           uuid.UUID                      `json:"id"`
	ItemID       uuid.UUID                      `json:"item_id"`
	Type         enums.InventoryTransactionType `json:"type"`
	Quantity     decimal.Decimal                `json:"quantity"`
	SourceType   enums.InventorySourceType      `json:"source_type"`
	SourceID     *uuid.UUID                     `json:"source_id,omitempty"`
	SourceLineID *uuid.UUID                     `json:"source_line_id,omitempty"`
	Notes        *string                        `json:"notes,omitempty"`
	CreatedAt    time.Time                      `json:"created_at"`
}

type historyResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	NextCursor   string                `json:"next_cursor,omitempty"`
}

func toTransactionResponse(t *models.InventoryTransaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		ItemID:       t.ItemID,
		Type:         t.Type,
		Quantity:     t.Quantity,
		SourceType:   t.SourceType,
		SourceID:     t.SourceID,
		SourceLineID: t.SourceLineID,
		Notes:        t.Notes,
		CreatedAt:    t.CreatedAt,
	}
}

func toHistoryResponse(h *ledger.ItemHistory) historyResponse {
	out := historyResponse{
		Transactions: make([]transactionResponse, 0, len(h.Transactions)),
		NextCursor:   h.NextCursor,
	}
	for i := range h.Transactions {
		out.Transactions = append(out.Transactions, toTransactionResponse(&h.Transactions[i]))
	}
	return out
}
