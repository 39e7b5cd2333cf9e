package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the canonical record of a captured page, deduplicated by source URL.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title       string    `gorm:"column:title;not null;default:''"`
	Brand       *string   `gorm:"column:brand"`
	Category    *string   `gorm:"column:category"`
	Description *string   `gorm:"column:description"`
	SourceURL   string    `gorm:"column:source_url;not null;uniqueIndex:products_source_url_key"`
	ImageURL    *string   `gorm:"column:image_url"`
	Prices      []Price   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
