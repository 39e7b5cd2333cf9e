package wishlist

import (
	"time"

	"github.com/google/uuid"
)

// PricePoint is one entry of an item's price history.
type PricePoint struct {
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	SourceURL string    `json:"sourceUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Item is the cached view of one wishlist entry. ID is the product identity,
// WishlistItemID the membership row; deleting requires both.
type Item struct {
	ID                uuid.UUID    `json:"id"`
	WishlistItemID    *uuid.UUID   `json:"wishlistItemId"`
	Title             string       `json:"title"`
	Brand             *string      `json:"brand"`
	SourceURL         string       `json:"sourceUrl"`
	Category          *string      `json:"category"`
	ImageURL          *string      `json:"imageUrl"`
	CreatedAt         time.Time    `json:"createdAt"`
	Price             *float64     `json:"price"`
	PriceHistory      []PricePoint `json:"priceHistory"`
	TargetPrice       *float64     `json:"targetPrice,omitempty"`
	PendingEnrichment bool         `json:"pendingEnrichment"`
}

// HasImage reports whether enrichment has landed an image for the item.
func (i Item) HasImage() bool {
	return i.ImageURL != nil && *i.ImageURL != ""
}

// DerivePrice sets Price to the most recent history entry, or nil.
func (i *Item) DerivePrice() {
	if len(i.PriceHistory) == 0 {
		i.Price = nil
		return
	}
	latest := i.PriceHistory[len(i.PriceHistory)-1].Amount
	i.Price = &latest
}

// Enrichment holds the product fields populated after capture.
type Enrichment struct {
	Title       string
	Brand       string
	Category    string
	Description string
	ImageURL    string
}
