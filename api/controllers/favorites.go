package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/internal/synchronizer"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

// FavoritesToggle flips the favorite state of a product.
func FavoritesToggle(svc synchronizer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		favorited, err := svc.ToggleFavorite(ctx, userID, productID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "favorited": favorited})
	}
}

// FavoritesList returns the cached favorite product ids.
func FavoritesList(svc synchronizer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		snap, err := svc.Items(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		favorites := snap.Favorites
		if favorites == nil {
			favorites = []uuid.UUID{}
		}
		responses.WriteSuccess(w, map[string]any{"favorites": favorites})
	}
}
