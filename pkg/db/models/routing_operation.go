package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RoutingOperation is one step of a product's routing. Times are in minutes.
type RoutingOperation struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Sequence       int             `gorm:"column:sequence;not null"`
	WorkCenterID   string          `gorm:"column:work_center_id;not null"`
	Description    string          `gorm:"column:description;not null;default:''"`
	SetupTime      decimal.Decimal `gorm:"column:setup_time;type:numeric(18,4);not null;default:0"`
	RunTimePerUnit decimal.Decimal `gorm:"column:run_time_per_unit;type:numeric(18,4);not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (o *RoutingOperation) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
