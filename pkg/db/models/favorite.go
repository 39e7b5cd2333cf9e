package models

import (
	"time"

	"github.com/google/uuid"
)

// Favorite marks a product as a favorite of a user.
type Favorite struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
