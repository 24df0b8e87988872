package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// Quote is a priced offer for a quantity of one product.
type Quote struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CustomerRef     string            `gorm:"column:customer_ref;not null"`
	ProductID       uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	Quantity        decimal.Decimal   `gorm:"column:quantity;type:numeric(18,4);not null"`
	UnitPrice       decimal.Decimal   `gorm:"column:unit_price;type:numeric(18,4);not null;default:0"`
	TotalPrice      decimal.Decimal   `gorm:"column:total_price;type:numeric(18,4);not null;default:0"`
	Status          enums.QuoteStatus `gorm:"column:status;type:quote_status;not null"`
	ExpiresAt       time.Time         `gorm:"column:expires_at;not null"`
	SalesOrderID    *uuid.UUID        `gorm:"column:sales_order_id;type:uuid"`
	Notes           *string           `gorm:"column:notes"`
	RejectionReason *string           `gorm:"column:rejection_reason"`
	ApprovedAt      *time.Time        `gorm:"column:approved_at"`
	AcceptedAt      *time.Time        `gorm:"column:accepted_at"`
	RejectedAt      *time.Time        `gorm:"column:rejected_at"`
	CancelledAt     *time.Time        `gorm:"column:cancelled_at"`
	ConvertedAt     *time.Time        `gorm:"column:converted_at"`
	Version         int               `gorm:"column:version;not null;default:1"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (q *Quote) BeforeCreate(*gorm.DB) error {
	assignID(&q.ID)
	return nil
}

// IsExpired reports whether the quote can no longer be converted at now.
func (q Quote) IsExpired(now time.Time) bool {
	return !q.ExpiresAt.After(now)
}
