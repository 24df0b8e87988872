// Package quotes owns the quote lifecycle and the one-time conversion of a
// quote into a sales order.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/payloads"
)

const defaultValidity = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type itemLookup interface {
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
}

type transitionRecorder interface {
	Observe(entity, action, outcome string)
}

// DraftOrderCreator opens a draft production order for a new sales order
// inside the conversion transaction.
type DraftOrderCreator interface {
	CreateDraft(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity decimal.Decimal, salesOrderID *uuid.UUID) (*models.ProductionOrder, error)
}

type Service interface {
	CreateQuote(ctx context.Context, input CreateQuoteInput) (*models.Quote, error)
	GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	TransitionQuote(ctx context.Context, input TransitionInput) (*models.Quote, error)
	ConvertQuote(ctx context.Context, input ConvertInput) (*models.SalesOrder, error)
}

type CreateQuoteInput struct {
	CustomerRef string
	ProductID   uuid.UUID
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	ExpiresAt   *time.Time
	Notes       string
	Actor       *outbox.Actor
}

// TransitionInput requests action on a quote. Reason is required to reject.
type TransitionInput struct {
	QuoteID uuid.UUID
	Action  enums.QuoteAction
	Reason  string
	Actor   *outbox.Actor
}

type ConvertInput struct {
	QuoteID uuid.UUID
	Actor   *outbox.Actor
}

type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Items      itemLookup
	// Production is optional; when set every conversion also opens a draft
	// production order for the quoted quantity.
	Production DraftOrderCreator
	Metrics    transitionRecorder
	Validity   time.Duration
	Now        func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outboxPublisher
	items      itemLookup
	production DraftOrderCreator
	metrics    transitionRecorder
	validity   time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("quotes repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item lookup required")
	}
	validity := params.Validity
	if validity <= 0 {
		validity = defaultValidity
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repository,
		tx:         params.Tx,
		outbox:     params.Outbox,
		items:      params.Items,
		production: params.Production,
		metrics:    params.Metrics,
		validity:   validity,
		now:        now,
	}, nil
}

func (s *service) CreateQuote(ctx context.Context, input CreateQuoteInput) (*models.Quote, error) {
	customer := strings.TrimSpace(input.CustomerRef)
	if customer == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer reference is required")
	}
	if !input.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.validity)
	if input.ExpiresAt != nil {
		if !input.ExpiresAt.After(now) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be in the future")
		}
		expiresAt = input.ExpiresAt.UTC()
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if _, err := s.items.FindItem(ctx, input.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product").
				WithDetails(map[string]any{"product_id": input.ProductID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	quote := &models.Quote{
		CustomerRef: customer,
		ProductID:   input.ProductID,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		TotalPrice:  input.UnitPrice.Mul(input.Quantity).Round(4),
		Status:      enums.QuoteStatusPending,
		ExpiresAt:   expiresAt,
		Version:     1,
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		quote.Notes = &notes
	}
	if err := s.repo.Create(ctx, quote); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create quote")
	}
	return quote, nil
}

func (s *service) GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	quote, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err, id)
	}
	return quote, nil
}

// TransitionQuote applies a lifecycle action. Convert is routed through
// ConvertQuote so it carries the same guards.
func (s *service) TransitionQuote(ctx context.Context, input TransitionInput) (*models.Quote, error) {
	if input.QuoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id is required")
	}
	if input.Action == enums.QuoteActionConvert {
		order, err := s.ConvertQuote(ctx, ConvertInput{QuoteID: input.QuoteID, Actor: input.Actor})
		if err != nil {
			return nil, err
		}
		return s.GetQuote(ctx, order.QuoteID)
	}

	var quote *models.Quote
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		quote, err = repo.FindForUpdate(ctx, input.QuoteID)
		if err != nil {
			return mapLoadError(err, input.QuoteID)
		}

		from := quote.Status
		next, err := Lifecycle.Next(from, input.Action)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		updates := map[string]any{"status": next}
		switch input.Action {
		case enums.QuoteActionApprove:
			updates["approved_at"] = now
			quote.ApprovedAt = &now
		case enums.QuoteActionAccept:
			updates["accepted_at"] = now
			quote.AcceptedAt = &now
		case enums.QuoteActionReject:
			reason := strings.TrimSpace(input.Reason)
			if reason == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "reason is required to reject a quote")
			}
			updates["rejected_at"] = now
			updates["rejection_reason"] = reason
			quote.RejectedAt = &now
			quote.RejectionReason = &reason
		case enums.QuoteActionCancel:
			updates["cancelled_at"] = now
			quote.CancelledAt = &now
		}
		if err := repo.Update(ctx, quote, updates); err != nil {
			return mapUpdateError(err)
		}
		quote.Status = next

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteStatusChanged,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Actor:         input.Actor,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.QuoteStatusChangedEvent{
				QuoteID:   quote.ID,
				From:      from,
				To:        next,
				Action:    input.Action,
				Reason:    strings.TrimSpace(input.Reason),
				ChangedAt: now,
			},
		})
	})
	s.observe(string(input.Action), err)
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// ConvertQuote creates the sales order for an approved or accepted quote that
// has not expired. The quote row stays locked for the whole conversion so a
// concurrent second call observes the converted state.
func (s *service) ConvertQuote(ctx context.Context, input ConvertInput) (*models.SalesOrder, error) {
	if input.QuoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id is required")
	}

	var order *models.SalesOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		quote, err := repo.FindForUpdate(ctx, input.QuoteID)
		if err != nil {
			return mapLoadError(err, input.QuoteID)
		}
		now := s.now().UTC()
		if err := checkConvertible(quote, now); err != nil {
			return err
		}

		order = &models.SalesOrder{
			QuoteID:     quote.ID,
			CustomerRef: quote.CustomerRef,
			ProductID:   quote.ProductID,
			Quantity:    quote.Quantity,
			UnitPrice:   quote.UnitPrice,
			Status:      enums.SalesOrderStatusOpen,
		}
		if err := repo.CreateSalesOrder(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeAlreadyConverted, "quote already converted").
					WithDetails(map[string]any{"quote_id": quote.ID.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sales order")
		}

		var productionOrderID *uuid.UUID
		if s.production != nil {
			draft, err := s.production.CreateDraft(ctx, tx, quote.ProductID, quote.Quantity, &order.ID)
			if err != nil {
				return err
			}
			productionOrderID = &draft.ID
			if err := repo.UpdateSalesOrderStatus(ctx, order.ID, enums.SalesOrderStatusInProduction); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update sales order status")
			}
			order.Status = enums.SalesOrderStatusInProduction
		}

		if err := repo.Update(ctx, quote, map[string]any{
			"status":         enums.QuoteStatusConverted,
			"sales_order_id": order.ID,
			"converted_at":   now,
		}); err != nil {
			return mapUpdateError(err)
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteConverted,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Actor:         input.Actor,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.QuoteConvertedEvent{
				QuoteID:           quote.ID,
				SalesOrderID:      order.ID,
				ProductID:         quote.ProductID,
				Quantity:          quote.Quantity,
				ProductionOrderID: productionOrderID,
				ConvertedAt:       now,
			},
		})
	})
	s.observe(string(enums.QuoteActionConvert), err)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// checkConvertible applies the conversion guards in a fixed order so the
// reported reason is stable.
func checkConvertible(quote *models.Quote, now time.Time) error {
	details := map[string]any{"quote_id": quote.ID.String(), "status": string(quote.Status)}
	if quote.Status == enums.QuoteStatusConverted {
		return pkgerrors.New(pkgerrors.CodeAlreadyConverted, "quote already converted").WithDetails(details)
	}
	if quote.SalesOrderID != nil {
		details["sales_order_id"] = quote.SalesOrderID.String()
		return pkgerrors.New(pkgerrors.CodeAlreadyLinked, "quote already linked to a sales order").WithDetails(details)
	}
	if _, err := Lifecycle.Next(quote.Status, enums.QuoteActionConvert); err != nil {
		return err
	}
	if quote.IsExpired(now) {
		details["expires_at"] = quote.ExpiresAt.UTC().Format(time.RFC3339)
		return pkgerrors.New(pkgerrors.CodeExpired, "quote has expired").WithDetails(details)
	}
	return nil
}

func (s *service) observe(action string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			outcome = string(typed.Code())
		}
	}
	s.metrics.Observe("quote", action, outcome)
}

func mapLoadError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "quote not found").
			WithDetails(map[string]any{"quote_id": id.String()})
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load quote")
}

func mapUpdateError(err error) error {
	if errors.Is(err, dbpkg.ErrStaleVersion) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "quote was modified concurrently")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update quote")
}
