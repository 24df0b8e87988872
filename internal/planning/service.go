// Package planning answers requirement and capacity questions for a product
// and quantity, and records planning runs for new sales orders.
package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/internal/bom"
	"github.com/angelmondragon/shopfloor-backend/internal/capacity"
	"github.com/angelmondragon/shopfloor-backend/internal/netting"
	dbpkg "github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
)

type Service interface {
	GetRequirements(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*Requirements, error)
	GetRequirementsTree(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*bom.DemandNode, error)
	GetCapacity(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*CapacityReport, error)
	RecordPlanningRun(ctx context.Context, input RunInput) (*models.PlanningRun, error)
}

type itemLookup interface {
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
}

// Requirements is the netted material demand of one product and quantity.
type Requirements struct {
	ProductID     uuid.UUID                     `json:"product_id"`
	Quantity      decimal.Decimal               `json:"quantity"`
	Requirements  []netting.MaterialRequirement `json:"requirements"`
	ShortageCount int                           `json:"shortage_count"`
}

// CapacityReport is the routing load of one product and quantity.
type CapacityReport struct {
	ProductID    uuid.UUID                 `json:"product_id"`
	Quantity     decimal.Decimal           `json:"quantity"`
	Operations   []capacity.OperationLoad  `json:"operations"`
	WorkCenters  []capacity.WorkCenterLoad `json:"work_centers"`
	TotalMinutes decimal.Decimal           `json:"total_minutes"`
	TotalHours   decimal.Decimal           `json:"total_hours"`
}

// RunInput identifies the sales order a planning run is recorded for.
type RunInput struct {
	SalesOrderID uuid.UUID
	ProductID    uuid.UUID
	Quantity     decimal.Decimal
}

type ServiceParams struct {
	Engine     *bom.Engine
	Calculator *capacity.Calculator
	Snapshot   netting.SnapshotProvider
	Items      itemLookup
	Runs       Repository
}

type service struct {
	engine     *bom.Engine
	calculator *capacity.Calculator
	snapshot   netting.SnapshotProvider
	items      itemLookup
	runs       Repository
}

func NewService(params ServiceParams) (Service, error) {
	if params.Engine == nil {
		return nil, fmt.Errorf("bom engine required")
	}
	if params.Calculator == nil {
		return nil, fmt.Errorf("capacity calculator required")
	}
	if params.Snapshot == nil {
		return nil, fmt.Errorf("snapshot provider required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item lookup required")
	}
	if params.Runs == nil {
		return nil, fmt.Errorf("planning run repository required")
	}
	return &service{
		engine:     params.Engine,
		calculator: params.Calculator,
		snapshot:   params.Snapshot,
		items:      params.Items,
		runs:       params.Runs,
	}, nil
}

// GetRequirements explodes at the requested quantity and nets once against a
// fresh snapshot. Any explosion or netting error fails the whole call.
func (s *service) GetRequirements(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*Requirements, error) {
	demands, err := s.engine.Explode(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}
	reqs, err := netting.Net(ctx, demands, s.snapshot)
	if err != nil {
		return nil, err
	}
	return &Requirements{
		ProductID:     productID,
		Quantity:      quantity,
		Requirements:  reqs,
		ShortageCount: len(netting.Shortages(reqs)),
	}, nil
}

func (s *service) GetRequirementsTree(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*bom.DemandNode, error) {
	return s.engine.ExplodeTree(ctx, productID, quantity)
}

func (s *service) GetCapacity(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*CapacityReport, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	loads, err := s.calculator.Capacity(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}
	return &CapacityReport{
		ProductID:    productID,
		Quantity:     quantity,
		Operations:   loads,
		WorkCenters:  capacity.SummarizeByWorkCenter(loads),
		TotalMinutes: capacity.TotalMinutes(loads),
		TotalHours:   capacity.TotalHours(loads),
	}, nil
}

// RecordPlanningRun stores the requirements computed for a sales order. A run
// that already exists for the order is returned unchanged.
func (s *service) RecordPlanningRun(ctx context.Context, input RunInput) (*models.PlanningRun, error) {
	if input.SalesOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sales order id is required")
	}
	existing, err := s.runs.FindBySalesOrder(ctx, input.SalesOrderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load planning run")
	}

	reqs, err := s.GetRequirements(ctx, input.ProductID, input.Quantity)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(reqs.Requirements)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode requirements")
	}
	run := &models.PlanningRun{
		SalesOrderID:  input.SalesOrderID,
		ProductID:     input.ProductID,
		Quantity:      input.Quantity,
		ShortageCount: reqs.ShortageCount,
		Requirements:  body,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return s.runs.FindBySalesOrder(ctx, input.SalesOrderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store planning run")
	}
	return run, nil
}

func (s *service) ensureProduct(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if _, err := s.items.FindItem(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown product").
				WithDetails(map[string]any{"product_id": productID.String()})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return nil
}
