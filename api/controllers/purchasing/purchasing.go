package purchasing

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/api/middleware"
	"github.com/angelmondragon/shopfloor-backend/api/responses"
	"github.com/angelmondragon/shopfloor-backend/api/validators"
	internalpurchasing "github.com/angelmondragon/shopfloor-backend/internal/purchasing"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

type orderLineRequest struct {
	ItemID   uuid.UUID       `json:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitCost decimal.Decimal `json:"unit_cost" validate:"gte=0"`
}

type createOrderRequest struct {
	SupplierRef string             `json:"supplier_ref" validate:"required,max=128"`
	Notes       string             `json:"notes,omitempty" validate:"max=1000"`
	Lines       []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type transitionRequest struct {
	Action string `json:"action" validate:"required"`
}

type receiptLineRequest struct {
	LineID   uuid.UUID       `json:"line_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

type receiptRequest struct {
	Lines []receiptLineRequest `json:"lines" validate:"required,min=1,dive"`
	Notes string               `json:"notes,omitempty" validate:"max=1000"`
}

func Create(svc internalpurchasing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchasing service unavailable"))
			return
		}
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]internalpurchasing.LineInput, 0, len(req.Lines))
		for _, line := range req.Lines {
			lines = append(lines, internalpurchasing.LineInput{
				ItemID:   line.ItemID,
				Quantity: line.Quantity,
				UnitCost: line.UnitCost,
			})
		}
		order, err := svc.CreatePurchaseOrder(r.Context(), internalpurchasing.CreateInput{
			SupplierRef: validators.SanitizeString(req.SupplierRef, 128),
			Notes:       validators.SanitizeString(req.Notes, 1000),
			Lines:       lines,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderResponse(order))
	}
}

func Detail(svc internalpurchasing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchasing service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "poID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetPurchaseOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

func Transition(svc internalpurchasing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchasing service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "poID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrder(r.Context(), "purchase_order", orderID.String())
		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		action, err := enums.ParsePurchaseOrderAction(req.Action)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
			return
		}

		order, err := svc.TransitionPurchaseOrder(ctx, internalpurchasing.TransitionInput{
			OrderID: orderID,
			Action:  action,
			Actor:   middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

// Receive books a partial or full receipt against the order's lines.
func Receive(svc internalpurchasing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchasing service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "poID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrder(r.Context(), "purchase_order", orderID.String())
		var req receiptRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		receipts := make([]internalpurchasing.LineReceipt, 0, len(req.Lines))
		for _, line := range req.Lines {
			receipts = append(receipts, internalpurchasing.LineReceipt{LineID: line.LineID, Quantity: line.Quantity})
		}
		order, err := svc.ReceivePurchaseOrderLines(ctx, internalpurchasing.ReceiveInput{
			OrderID: orderID,
			Lines:   receipts,
			Notes:   validators.SanitizeString(req.Notes, 1000),
			Actor:   middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}
