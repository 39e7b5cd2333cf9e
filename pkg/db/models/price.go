package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Price is one observed price of a product.
type Price struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index:idx_prices_product_created"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency  string          `gorm:"column:currency;not null;default:'USD'"`
	SourceURL *string         `gorm:"column:source_url"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime;index:idx_prices_product_created"`
}
