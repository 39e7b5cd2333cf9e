package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WishlistItem links a wishlist to a product (membership row).
type WishlistItem struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WishlistID  uuid.UUID           `gorm:"column:wishlist_id;type:uuid;not null;uniqueIndex:wishlist_items_wishlist_product_key"`
	ProductID   uuid.UUID           `gorm:"column:product_id;type:uuid;not null;uniqueIndex:wishlist_items_wishlist_product_key"`
	TargetPrice decimal.NullDecimal `gorm:"column:target_price;type:numeric(12,2)"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}
