package quotes

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/api/middleware"
	"github.com/angelmondragon/shopfloor-backend/api/responses"
	"github.com/angelmondragon/shopfloor-backend/api/validators"
	internalquotes "github.com/angelmondragon/shopfloor-backend/internal/quotes"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

type createQuoteRequest struct {
	CustomerRef string          `json:"customer_ref" validate:"required,max=128"`
	ProductID   uuid.UUID       `json:"product_id" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Notes       string          `json:"notes,omitempty" validate:"max=1000"`
}

type transitionRequest struct {
	Action string `json:"action" validate:"required"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

func Create(svc internalquotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}
		var req createQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.CreateQuote(r.Context(), internalquotes.CreateQuoteInput{
			CustomerRef: validators.SanitizeString(req.CustomerRef, 128),
			ProductID:   req.ProductID,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
			ExpiresAt:   req.ExpiresAt,
			Notes:       validators.SanitizeString(req.Notes, 1000),
			Actor:       middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toQuoteResponse(quote))
	}
}

func Detail(svc internalquotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}
		quoteID, err := validators.ParseUUIDParam(r, "quoteID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.GetQuote(r.Context(), quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toQuoteResponse(quote))
	}
}

// Transition applies approve, accept, reject or cancel. Conversion has its
// own endpoint because it creates a sales order.
func Transition(svc internalquotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}
		quoteID, err := validators.ParseUUIDParam(r, "quoteID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrder(r.Context(), "quote", quoteID.String())
		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		action, err := enums.ParseQuoteAction(req.Action)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
			return
		}
		if action == enums.QuoteActionConvert {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "use the convert endpoint to convert a quote"))
			return
		}

		quote, err := svc.TransitionQuote(ctx, internalquotes.TransitionInput{
			QuoteID: quoteID,
			Action:  action,
			Reason:  validators.SanitizeString(req.Reason, 500),
			Actor:   middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toQuoteResponse(quote))
	}
}

// Convert turns an accepted quote into a sales order exactly once.
func Convert(svc internalquotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}
		quoteID, err := validators.ParseUUIDParam(r, "quoteID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrder(r.Context(), "quote", quoteID.String())

		order, err := svc.ConvertQuote(ctx, internalquotes.ConvertInput{
			QuoteID: quoteID,
			Actor:   middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toSalesOrderResponse(order))
	}
}
