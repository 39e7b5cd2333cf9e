package cache

import (
	"context"
	"sync"

	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	"github.com/google/uuid"
)

// MemoryStore keeps the cache in process. Used by tests and single-instance dev runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uuid.UUID]*Snapshot)}
}

func (m *MemoryStore) entry(userID uuid.UUID) *Snapshot {
	e, ok := m.entries[userID]
	if !ok {
		e = &Snapshot{Items: []wishlist.Item{}, Favorites: []uuid.UUID{}}
		m.entries[userID] = e
	}
	return e
}

func (m *MemoryStore) Snapshot(_ context.Context, userID uuid.UUID) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(userID)
	out := Snapshot{
		Items:        cloneItems(e.Items),
		Favorites:    append([]uuid.UUID{}, e.Favorites...),
		NeedsRefresh: e.NeedsRefresh,
	}
	if e.WishlistID != nil {
		id := *e.WishlistID
		out.WishlistID = &id
	}
	return out, nil
}

func (m *MemoryStore) Replace(_ context.Context, userID uuid.UUID, items []wishlist.Item, wishlistID uuid.UUID, favorites []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(userID)
	e.Items = cloneItems(items)
	e.WishlistID = &wishlistID
	e.Favorites = append([]uuid.UUID{}, favorites...)
	return nil
}

func (m *MemoryStore) PrependItem(_ context.Context, userID uuid.UUID, item wishlist.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(userID)
	e.Items = append(cloneItems([]wishlist.Item{item}), removeItem(e.Items, item.ID)...)
	return nil
}

func (m *MemoryStore) RemoveItem(_ context.Context, userID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(userID)
	e.Items = removeItem(e.Items, productID)
	return nil
}

func (m *MemoryStore) PatchItem(_ context.Context, userID, productID uuid.UUID, fn func(*wishlist.Item)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	patchItem(m.entry(userID).Items, productID, fn)
	return nil
}

func (m *MemoryStore) SetFavorite(_ context.Context, userID, productID uuid.UUID, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(userID)
	e.Favorites = setFavorite(e.Favorites, productID, on)
	return nil
}

func (m *MemoryStore) SetNeedsRefresh(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entry(userID).NeedsRefresh = true
	return nil
}

func (m *MemoryStore) TakeNeedsRefresh(_ context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(userID)
	flag := e.NeedsRefresh
	e.NeedsRefresh = false
	return flag, nil
}
