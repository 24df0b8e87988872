package production

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/api/middleware"
	"github.com/angelmondragon/shopfloor-backend/api/responses"
	"github.com/angelmondragon/shopfloor-backend/api/validators"
	internalproduction "github.com/angelmondragon/shopfloor-backend/internal/production"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

type createOrderRequest struct {
	ProductID    uuid.UUID       `json:"product_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity" validate:"gt=0"`
	SalesOrderID *uuid.UUID      `json:"sales_order_id,omitempty"`
}

// transitionRequest carries the optional quantity used by report, complete
// and split.
type transitionRequest struct {
	Action   string           `json:"action" validate:"required"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Reason   string           `json:"reason,omitempty" validate:"max=500"`
}

func Create(svc internalproduction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "production service unavailable"))
			return
		}
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateProductionOrder(r.Context(), internalproduction.CreateInput{
			ProductID:    req.ProductID,
			Quantity:     req.Quantity,
			SalesOrderID: req.SalesOrderID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderResponse(order))
	}
}

func Detail(svc internalproduction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "production service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetProductionOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

// Transition drives the production state machine. A split answers with both
// the reduced source and the new child order.
func Transition(svc internalproduction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "production service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrder(r.Context(), "production_order", orderID.String())
		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		action, err := enums.ParseProductionOrderAction(req.Action)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
			return
		}
		actor := middleware.ActorFromContext(ctx)

		if action == enums.ProductionOrderActionSplit {
			if req.Quantity == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "quantity is required to split"))
				return
			}
			result, err := svc.SplitProductionOrder(ctx, internalproduction.SplitInput{
				OrderID:  orderID,
				Quantity: *req.Quantity,
				Actor:    actor,
			})
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteSuccess(w, toSplitResponse(result))
			return
		}

		order, err := svc.TransitionProductionOrder(ctx, internalproduction.TransitionInput{
			OrderID:  orderID,
			Action:   action,
			Quantity: req.Quantity,
			Reason:   validators.SanitizeString(req.Reason, 500),
			Actor:    actor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}
