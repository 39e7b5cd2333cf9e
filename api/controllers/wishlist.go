package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/api/validators"
	"github.com/angelmondragon/wishlist-backend/internal/cache"
	"github.com/angelmondragon/wishlist-backend/internal/deals"
	"github.com/angelmondragon/wishlist-backend/internal/synchronizer"
	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

const (
	maxBadgesLimit = 4
	maxTitleLength = 500
)

type badgeView struct {
	deals.Badge
	StyleClass string `json:"styleClass"`
}

type itemView struct {
	wishlist.Item
	Favorite bool        `json:"favorite"`
	Badges   []badgeView `json:"badges"`
}

type wishlistView struct {
	WishlistID   *uuid.UUID  `json:"wishlistId"`
	Items        []itemView  `json:"items"`
	Favorites    []uuid.UUID `json:"favorites"`
	NeedsRefresh bool        `json:"dataNeedsRefresh"`
}

var styleByTone = map[deals.Tone]string{
	deals.ToneFavorable:   "badge-success",
	deals.ToneUnfavorable: "badge-danger",
	deals.ToneNeutral:     "badge-info",
}

func presentBadges(badges []deals.Badge) []badgeView {
	out := make([]badgeView, 0, len(badges))
	for _, b := range badges {
		out = append(out, badgeView{Badge: b, StyleClass: styleByTone[b.Tone]})
	}
	return out
}

func presentSnapshot(snap cache.Snapshot, maxBadges int) wishlistView {
	view := wishlistView{
		WishlistID:   snap.WishlistID,
		Items:        make([]itemView, 0, len(snap.Items)),
		Favorites:    snap.Favorites,
		NeedsRefresh: snap.NeedsRefresh,
	}
	if view.Favorites == nil {
		view.Favorites = []uuid.UUID{}
	}
	for _, item := range snap.Items {
		view.Items = append(view.Items, itemView{
			Item:     item,
			Favorite: snap.HasFavorite(item.ID),
			Badges:   presentBadges(deals.ForItem(item, maxBadges)),
		})
	}
	return view
}

// WishlistGet serves the popup: refreshes when flagged and returns the cached
// items with their badges.
func WishlistGet(svc synchronizer.Service, defaultMaxBadges int, logg *logger.Logger) http.HandlerFunc {
	if defaultMaxBadges <= 0 || defaultMaxBadges > maxBadgesLimit {
		defaultMaxBadges = deals.DefaultMaxBadges
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		maxBadges, err := validators.ParseQueryInt(r, "max_badges", defaultMaxBadges, 1, maxBadgesLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		snap, err := svc.Activate(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentSnapshot(snap, maxBadges))
	}
}

// WishlistRefresh forces a reload from the remote store.
func WishlistRefresh(svc synchronizer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		snap, err := svc.Refresh(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentSnapshot(snap, deals.DefaultMaxBadges))
	}
}

// WishlistBootstrap creates the user's wishlist when missing.
func WishlistBootstrap(svc synchronizer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		snap, created, err := svc.Bootstrap(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, presentSnapshot(snap, deals.DefaultMaxBadges))
	}
}

type addItemPayload struct {
	PageTitle  string     `json:"page_title" validate:"max=2000"`
	PageURL    string     `json:"page_url" validate:"required,max=2048"`
	WishlistID *uuid.UUID `json:"wishlist_id" validate:"required"`
	PageHTML   string     `json:"page_html" validate:"max=1000000"`
	Trigger    string     `json:"trigger" validate:"max=32"`
}

// WishlistAddItem saves the page the user is on. A request without a title or
// page_html is captured server side once the debounce window admits it.
func WishlistAddItem(svc synchronizer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload addItemPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := synchronizer.AddItemInput{
			UserID:     userID,
			PageTitle:  validators.SanitizeString(payload.PageTitle, maxTitleLength),
			PageURL:    strings.TrimSpace(payload.PageURL),
			WishlistID: payload.WishlistID,
			PageHTML:   strings.TrimSpace(payload.PageHTML),
			Source:     payload.Trigger,
		}
		item, err := svc.AddCurrentItem(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if item == nil {
			responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]bool{"debounced": true})
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, itemView{Item: *item, Badges: []badgeView{}})
	}
}

// WishlistRemoveItem deletes an item by product id.
func WishlistRemoveItem(svc synchronizer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		productID, err := uuidParam(r, "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.DeleteItem(ctx, userID, productID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"removed": true})
	}
}

type targetPricePayload struct {
	TargetPrice *decimal.Decimal `json:"target_price"`
}

// WishlistSetTarget sets or clears the target price of an item.
func WishlistSetTarget(svc synchronizer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		productID, err := uuidParam(r, "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload targetPricePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.SetTargetPrice(ctx, userID, productID, payload.TargetPrice); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"updated": true, "target_price": payload.TargetPrice})
	}
}
