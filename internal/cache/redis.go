package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	pkgredis "github.com/angelmondragon/wishlist-backend/pkg/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldItems        = "wishlist_items"
	fieldWishlistID   = "wishlist_id"
	fieldFavorites    = "favorites"
	fieldNeedsRefresh = "data_needs_refresh"

	maxWatchRetries = 5
)

// RedisStore keeps the cache in Redis so every API instance sees the same state.
type RedisStore struct {
	client *pkgredis.Client
	ttl    time.Duration
}

// NewRedisStore builds a store whose keys expire after ttl of inactivity (0 keeps them forever).
func NewRedisStore(client *pkgredis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) key(userID uuid.UUID, field string) string {
	return s.client.CacheKey(userID.String(), field)
}

func (s *RedisStore) Snapshot(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	var itemsCmd, wishlistCmd, favoritesCmd, flagCmd *redis.StringCmd
	err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		itemsCmd = pipe.Get(ctx, s.key(userID, fieldItems))
		wishlistCmd = pipe.Get(ctx, s.key(userID, fieldWishlistID))
		favoritesCmd = pipe.Get(ctx, s.key(userID, fieldFavorites))
		flagCmd = pipe.Get(ctx, s.key(userID, fieldNeedsRefresh))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Snapshot{}, fmt.Errorf("read cache: %w", err)
	}

	snap := Snapshot{Items: []wishlist.Item{}, Favorites: []uuid.UUID{}}
	if err := decodeField(itemsCmd, &snap.Items); err != nil {
		return Snapshot{}, err
	}
	if err := decodeField(favoritesCmd, &snap.Favorites); err != nil {
		return Snapshot{}, err
	}
	if raw, err := wishlistCmd.Result(); err == nil {
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return Snapshot{}, fmt.Errorf("decode wishlist id: %w", parseErr)
		}
		snap.WishlistID = &id
	} else if !errors.Is(err, redis.Nil) {
		return Snapshot{}, err
	}
	if _, err := flagCmd.Result(); err == nil {
		snap.NeedsRefresh = true
	} else if !errors.Is(err, redis.Nil) {
		return Snapshot{}, err
	}
	return snap, nil
}

func decodeField(cmd *redis.StringCmd, dst any) error {
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", cmd.Args()[1], err)
	}
	return nil
}

func (s *RedisStore) Replace(ctx context.Context, userID uuid.UUID, items []wishlist.Item, wishlistID uuid.UUID, favorites []uuid.UUID) error {
	if items == nil {
		items = []wishlist.Item{}
	}
	if favorites == nil {
		favorites = []uuid.UUID{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	favoritesJSON, err := json.Marshal(favorites)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}

	return s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(userID, fieldItems), itemsJSON, s.ttl)
		pipe.Set(ctx, s.key(userID, fieldWishlistID), wishlistID.String(), s.ttl)
		pipe.Set(ctx, s.key(userID, fieldFavorites), favoritesJSON, s.ttl)
		return nil
	})
}

func (s *RedisStore) PrependItem(ctx context.Context, userID uuid.UUID, item wishlist.Item) error {
	return s.mutateItems(ctx, userID, func(items []wishlist.Item) []wishlist.Item {
		return append([]wishlist.Item{item}, removeItem(items, item.ID)...)
	})
}

func (s *RedisStore) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return s.mutateItems(ctx, userID, func(items []wishlist.Item) []wishlist.Item {
		return removeItem(items, productID)
	})
}

func (s *RedisStore) PatchItem(ctx context.Context, userID, productID uuid.UUID, fn func(*wishlist.Item)) error {
	return s.mutateItems(ctx, userID, func(items []wishlist.Item) []wishlist.Item {
		patchItem(items, productID, fn)
		return items
	})
}

func (s *RedisStore) SetFavorite(ctx context.Context, userID, productID uuid.UUID, on bool) error {
	key := s.key(userID, fieldFavorites)
	return s.mutate(ctx, key, func(raw []byte) (any, error) {
		favorites := []uuid.UUID{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &favorites); err != nil {
				return nil, fmt.Errorf("decode favorites: %w", err)
			}
		}
		return setFavorite(favorites, productID, on), nil
	})
}

func (s *RedisStore) SetNeedsRefresh(ctx context.Context, userID uuid.UUID) error {
	return s.client.Set(ctx, s.key(userID, fieldNeedsRefresh), "1", s.ttl)
}

func (s *RedisStore) TakeNeedsRefresh(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, err := s.client.GetDel(ctx, s.key(userID, fieldNeedsRefresh))
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) mutateItems(ctx context.Context, userID uuid.UUID, fn func([]wishlist.Item) []wishlist.Item) error {
	return s.mutate(ctx, s.key(userID, fieldItems), func(raw []byte) (any, error) {
		items := []wishlist.Item{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("decode items: %w", err)
			}
		}
		return fn(items), nil
	})
}

// mutate performs an optimistic read-modify-write of one JSON key.
func (s *RedisStore) mutate(ctx context.Context, key string, fn func(raw []byte) (any, error)) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(raw)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: %w", key, redis.TxFailedErr)
}
