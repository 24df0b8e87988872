package planning

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
)

// Repository stores planning runs. Runs are history and are never read back
// to answer requirement requests.
type Repository interface {
	Create(ctx context.Context, run *models.PlanningRun) error
	FindBySalesOrder(ctx context.Context, salesOrderID uuid.UUID) (*models.PlanningRun, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) Create(ctx context.Context, run *models.PlanningRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *repository) FindBySalesOrder(ctx context.Context, salesOrderID uuid.UUID) (*models.PlanningRun, error) {
	var run models.PlanningRun
	if err := r.db.WithContext(ctx).Where("sales_order_id = ?", salesOrderID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}
