package models

import (
	"time"

	"github.com/google/uuid"
)

// Wishlist is the single list owned by a user.
type Wishlist struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_wishlists_user_created"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_wishlists_user_created"`
}
