package cache

import (
	"context"

	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	"github.com/google/uuid"
)

// Snapshot is the cached state of one user's popup: the persisted keys
// wishlistItems, wishlistId, favorites and dataNeedsRefresh.
type Snapshot struct {
	Items        []wishlist.Item `json:"items"`
	WishlistID   *uuid.UUID      `json:"wishlistId"`
	Favorites    []uuid.UUID     `json:"favorites"`
	NeedsRefresh bool            `json:"dataNeedsRefresh"`
}

// HasFavorite reports whether productID is in the favorite set.
func (s Snapshot) HasFavorite(productID uuid.UUID) bool {
	for _, id := range s.Favorites {
		if id == productID {
			return true
		}
	}
	return false
}

// FindItem returns the cached item with the given product id.
func (s Snapshot) FindItem(productID uuid.UUID) (wishlist.Item, bool) {
	for _, item := range s.Items {
		if item.ID == productID {
			return item, true
		}
	}
	return wishlist.Item{}, false
}

// Store owns the per-user local cache. Each user has a single writer, so
// concurrent writers resolve as last write wins.
type Store interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (Snapshot, error)
	// Replace swaps items, wishlist id and favorites in one step.
	Replace(ctx context.Context, userID uuid.UUID, items []wishlist.Item, wishlistID uuid.UUID, favorites []uuid.UUID) error
	PrependItem(ctx context.Context, userID uuid.UUID, item wishlist.Item) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	// PatchItem applies fn to the cached item; a missing item is a no-op.
	PatchItem(ctx context.Context, userID, productID uuid.UUID, fn func(*wishlist.Item)) error
	SetFavorite(ctx context.Context, userID, productID uuid.UUID, on bool) error
	SetNeedsRefresh(ctx context.Context, userID uuid.UUID) error
	// TakeNeedsRefresh reads and clears the refresh flag.
	TakeNeedsRefresh(ctx context.Context, userID uuid.UUID) (bool, error)
}

func cloneItems(items []wishlist.Item) []wishlist.Item {
	out := make([]wishlist.Item, len(items))
	for i, item := range items {
		item.PriceHistory = append([]wishlist.PricePoint{}, item.PriceHistory...)
		out[i] = item
	}
	return out
}

func removeItem(items []wishlist.Item, productID uuid.UUID) []wishlist.Item {
	out := make([]wishlist.Item, 0, len(items))
	for _, item := range items {
		if item.ID != productID {
			out = append(out, item)
		}
	}
	return out
}

func patchItem(items []wishlist.Item, productID uuid.UUID, fn func(*wishlist.Item)) {
	for i := range items {
		if items[i].ID == productID {
			fn(&items[i])
			return
		}
	}
}

func setFavorite(favorites []uuid.UUID, productID uuid.UUID, on bool) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(favorites)+1)
	for _, id := range favorites {
		if id != productID {
			out = append(out, id)
		}
	}
	if on {
		out = append(out, productID)
	}
	return out
}
