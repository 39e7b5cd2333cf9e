package synchronizer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/wishlist-backend/internal/cache"
	"github.com/angelmondragon/wishlist-backend/internal/enrichment"
	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	"github.com/angelmondragon/wishlist-backend/pkg/db"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxTitleLength = 500

// Remote is the subset of the relational store the synchronizer talks to.
type Remote interface {
	FindWishlistByUser(ctx context.Context, userID uuid.UUID) (*models.Wishlist, error)
	CreateWishlist(ctx context.Context, userID uuid.UUID) (*models.Wishlist, bool, error)
	ListItems(ctx context.Context, wishlistID uuid.UUID) ([]wishlist.Item, error)
	ListFavorites(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	UpsertProduct(ctx context.Context, title, sourceURL string) (*models.Product, error)
	InsertMembership(ctx context.Context, wishlistID, productID uuid.UUID) (*models.WishlistItem, error)
	DeleteMembership(ctx context.Context, wishlistID, wishlistItemID uuid.UUID) error
	SetTargetPrice(ctx context.Context, wishlistID, wishlistItemID uuid.UUID, target *decimal.Decimal) error
	ToggleFavorite(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// PageFetcher captures a page the client did not send.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (enrichment.Page, error)
}

// ServiceParams groups dependencies for the synchronizer. Pages is optional;
// without it an add must carry a page title.
type ServiceParams struct {
	Remote    Remote
	Cache     cache.Store
	Debouncer Debouncer
	Trigger   enrichment.Trigger
	Pages     PageFetcher
	Metrics   *metrics.SyncMetrics
	Logger    *logger.Logger
}

// AddItemInput describes a capture of the page the user is looking at.
type AddItemInput struct {
	UserID     uuid.UUID
	PageTitle  string
	PageURL    string
	WishlistID *uuid.UUID
	// PageHTML is handed to enrichment; when empty the worker fetches the page.
	// An add with neither title nor html is captured server side.
	PageHTML string
	Source   string
}

// Service keeps the per-user cache consistent with the remote store.
type Service interface {
	Refresh(ctx context.Context, userID uuid.UUID) (cache.Snapshot, error)
	Activate(ctx context.Context, userID uuid.UUID) (cache.Snapshot, error)
	Bootstrap(ctx context.Context, userID uuid.UUID) (cache.Snapshot, bool, error)
	Items(ctx context.Context, userID uuid.UUID) (cache.Snapshot, error)
	AddCurrentItem(ctx context.Context, in AddItemInput) (*wishlist.Item, error)
	DeleteItem(ctx context.Context, userID, productID uuid.UUID) error
	ToggleFavorite(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	SetTargetPrice(ctx context.Context, userID, productID uuid.UUID, target *decimal.Decimal) error
}

type service struct {
	remote    Remote
	cache     cache.Store
	debouncer Debouncer
	trigger   enrichment.Trigger
	pages     PageFetcher
	metrics   *metrics.SyncMetrics
	logg      *logger.Logger
}

// NewService builds a synchronizer with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote store is required")
	}
	if params.Cache == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cache store is required")
	}
	if params.Debouncer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debouncer is required")
	}
	if params.Trigger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "enrichment trigger is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		remote:    params.Remote,
		cache:     params.Cache,
		debouncer: params.Debouncer,
		trigger:   params.Trigger,
		pages:     params.Pages,
		metrics:   params.Metrics,
		logg:      logg,
	}, nil
}

func (s *service) observe(op string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	s.metrics.Observe(op, outcome, time.Since(start))
}

// Refresh reloads the user's wishlist and favorites from the remote store and
// replaces the cache in one step. On failure the cache is left untouched.
func (s *service) Refresh(ctx context.Context, userID uuid.UUID) (snap cache.Snapshot, err error) {
	defer func(start time.Time) { s.observe("refresh", start, err) }(time.Now())

	list, err := s.remote.FindWishlistByUser(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return cache.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "wishlist not found")
		}
		return cache.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	items, err := s.remote.ListItems(ctx, list.ID)
	if err != nil {
		return cache.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist items")
	}
	favorites, err := s.remote.ListFavorites(ctx, userID)
	if err != nil {
		return cache.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load favorites")
	}

	prior, err := s.cache.Snapshot(ctx, userID)
	if err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "cache unreadable before refresh, pending flags dropped")
		prior = cache.Snapshot{}
	}
	carryPending(items, prior.Items)

	if err := s.cache.Replace(ctx, userID, items, list.ID, favorites); err != nil {
		return cache.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write cache")
	}

	wishlistID := list.ID
	return cache.Snapshot{Items: items, WishlistID: &wishlistID, Favorites: favorites}, nil
}

// carryPending keeps the pending flag for items that were still waiting on
// enrichment and have not received an image yet.
func carryPending(fresh, prior []wishlist.Item) {
	pending := make(map[uuid.UUID]bool, len(prior))
	for _, item := range prior {
		if item.PendingEnrichment {
			pending[item.ID] = true
		}
	}
	for i := range fresh {
		fresh[i].PendingEnrichment = pending[fresh[i].ID] && !fresh[i].HasImage()
	}
}

// Activate is called when the popup opens. It refreshes when enrichment has
// flagged the cache or nothing is cached yet, and otherwise serves the cache.
func (s *service) Activate(ctx context.Context, userID uuid.UUID) (cache.Snapshot, error) {
	ctx = s.logg.WithUserID(ctx, userID.String())

	flagged, err := s.cache.TakeNeedsRefresh(ctx, userID)
	if err != nil {
		return cache.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read refresh flag")
	}
	current, err := s.cache.Snapshot(ctx, userID)
	if err != nil {
		s.restoreFlag(ctx, userID, flagged)
		return cache.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cache")
	}
	if !flagged && current.WishlistID != nil {
		return current, nil
	}

	fresh, err := s.Refresh(ctx, userID)
	if err == nil {
		return fresh, nil
	}
	s.restoreFlag(ctx, userID, flagged)
	if current.WishlistID == nil {
		return cache.Snapshot{}, err
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "refresh failed, serving cached wishlist")
	current.NeedsRefresh = flagged
	return current, nil
}

// restoreFlag puts back a refresh flag taken by an activation that did not
// complete a refresh.
func (s *service) restoreFlag(ctx context.Context, userID uuid.UUID, flagged bool) {
	if !flagged {
		return
	}
	if err := s.cache.SetNeedsRefresh(ctx, userID); err != nil {
		s.logg.Error(ctx, "failed to restore refresh flag", err)
	}
}

// Bootstrap ensures the user has a wishlist and loads it into the cache.
func (s *service) Bootstrap(ctx context.Context, userID uuid.UUID) (cache.Snapshot, bool, error) {
	_, created, err := s.remote.CreateWishlist(ctx, userID)
	if err != nil {
		return cache.Snapshot{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wishlist")
	}
	snap, err := s.Refresh(ctx, userID)
	if err != nil {
		return cache.Snapshot{}, created, err
	}
	return snap, created, nil
}

// Items returns the cached state without touching the remote store.
func (s *service) Items(ctx context.Context, userID uuid.UUID) (cache.Snapshot, error) {
	snap, err := s.cache.Snapshot(ctx, userID)
	if err != nil {
		return cache.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cache")
	}
	return snap, nil
}

// AddCurrentItem saves the captured page to the wishlist, prepends it to the
// cache and hands it to enrichment. A debounced call returns (nil, nil).
// Malformed input is rejected before the debounce window is consulted, and a
// failed add releases the window so a corrected retry goes through.
func (s *service) AddCurrentItem(ctx context.Context, in AddItemInput) (item *wishlist.Item, err error) {
	start := time.Now()
	ctx = s.logg.WithUserID(ctx, in.UserID.String())
	defer func() {
		if err == nil && item == nil {
			s.metrics.Observe("add_item", metrics.OutcomeDebounced, time.Since(start))
			return
		}
		s.observe("add_item", start, err)
	}()

	title := strings.TrimSpace(in.PageTitle)
	pageHTML := strings.TrimSpace(in.PageHTML)
	capture := title == "" && pageHTML == "" && s.pages != nil
	if title == "" && !capture {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "page title is required")
	}
	sourceURL, err := wishlist.NormalizeURL(in.PageURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "page url must be an http or https url")
	}
	if in.WishlistID == nil || *in.WishlistID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist id is required")
	}

	allowed, derr := s.debouncer.Allow(ctx, in.UserID, in.Source)
	if derr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", derr.Error()), "debouncer unavailable, allowing add")
		allowed = true
	}
	if !allowed {
		return nil, nil
	}
	defer func() {
		if err == nil {
			return
		}
		if relErr := s.debouncer.Release(ctx, in.UserID, in.Source); relErr != nil {
			s.logg.Error(ctx, "failed to release debounce window", relErr)
		}
	}()

	if err := s.ensureOwner(ctx, in.UserID, *in.WishlistID); err != nil {
		return nil, err
	}

	if capture {
		page, err := s.pages.Fetch(ctx, strings.TrimSpace(in.PageURL))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture page")
		}
		pageHTML = page.HTML
		title = truncateRunes(strings.Join(strings.Fields(page.Title), " "), maxTitleLength)
		if title == "" {
			title = sourceURL
		}
	}

	product, err := s.remote.UpsertProduct(ctx, title, sourceURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save product")
	}
	membership, err := s.remote.InsertMembership(ctx, *in.WishlistID, product.ID)
	if err != nil {
		switch {
		case errors.Is(err, wishlist.ErrDuplicateMembership):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicateItem, err, "already in wishlist")
		case db.IsForeignKeyViolation(err):
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "wishlist not found")
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add wishlist item")
		}
	}

	membershipID := membership.ID
	added := wishlist.Item{
		ID:                product.ID,
		WishlistItemID:    &membershipID,
		Title:             product.Title,
		Brand:             product.Brand,
		SourceURL:         product.SourceURL,
		Category:          product.Category,
		ImageURL:          product.ImageURL,
		CreatedAt:         membership.CreatedAt,
		PriceHistory:      []wishlist.PricePoint{},
		PendingEnrichment: true,
	}

	ctx = s.logg.WithItemID(ctx, product.ID.String())
	if err := s.cache.PrependItem(ctx, in.UserID, added); err != nil {
		s.logg.Error(ctx, "failed to prepend item to cache", err)
		if flagErr := s.cache.SetNeedsRefresh(ctx, in.UserID); flagErr != nil {
			s.logg.Error(ctx, "failed to flag cache for refresh", flagErr)
		}
	}

	job := enrichment.Job{
		HTML:      pageHTML,
		ItemID:    product.ID,
		UserID:    in.UserID,
		SourceURL: product.SourceURL,
	}
	if err := s.trigger.Trigger(ctx, job); err != nil {
		s.logg.Error(ctx, "failed to trigger enrichment", err)
	}

	return &added, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func (s *service) ensureOwner(ctx context.Context, userID, wishlistID uuid.UUID) error {
	snap, err := s.cache.Snapshot(ctx, userID)
	if err == nil && snap.WishlistID != nil {
		if *snap.WishlistID != wishlistID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "wishlist does not belong to user")
		}
		return nil
	}

	list, err := s.remote.FindWishlistByUser(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "wishlist not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	if list.ID != wishlistID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "wishlist does not belong to user")
	}
	return nil
}

// resolve finds the cached item and the ids needed to address its membership row.
func (s *service) resolve(ctx context.Context, userID, productID uuid.UUID) (wishlistID, membershipID uuid.UUID, err error) {
	snap, err := s.cache.Snapshot(ctx, userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cache")
	}
	item, ok := snap.FindItem(productID)
	if !ok || item.WishlistItemID == nil || snap.WishlistID == nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeMissingReference, "item reference is stale, refresh and try again")
	}
	return *snap.WishlistID, *item.WishlistItemID, nil
}

// DeleteItem removes the item remotely first and only then from the cache.
func (s *service) DeleteItem(ctx context.Context, userID, productID uuid.UUID) (err error) {
	defer func(start time.Time) { s.observe("delete_item", start, err) }(time.Now())

	wishlistID, membershipID, err := s.resolve(ctx, userID, productID)
	if err != nil {
		return err
	}
	if err := s.remote.DeleteMembership(ctx, wishlistID, membershipID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete wishlist item")
	}
	if err := s.cache.RemoveItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cache")
	}
	return nil
}

// ToggleFavorite flips the favorite remotely and mirrors the new state into
// the cache once the remote store accepted it.
func (s *service) ToggleFavorite(ctx context.Context, userID, productID uuid.UUID) (favorited bool, err error) {
	defer func(start time.Time) { s.observe("toggle_favorite", start, err) }(time.Now())

	if productID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	favorited, err = s.remote.ToggleFavorite(ctx, userID, productID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return false, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle favorite")
	}
	if err := s.cache.SetFavorite(ctx, userID, productID, favorited); err != nil {
		return favorited, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cache")
	}
	return favorited, nil
}

// SetTargetPrice sets or clears (nil) the price the user is waiting for.
func (s *service) SetTargetPrice(ctx context.Context, userID, productID uuid.UUID, target *decimal.Decimal) (err error) {
	defer func(start time.Time) { s.observe("set_target_price", start, err) }(time.Now())

	if target != nil && target.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "target price must not be negative")
	}
	wishlistID, membershipID, err := s.resolve(ctx, userID, productID)
	if err != nil {
		return err
	}
	if err := s.remote.SetTargetPrice(ctx, wishlistID, membershipID, target); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeMissingReference, err, "item reference is stale, refresh and try again")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set target price")
	}

	var value *float64
	if target != nil {
		v := target.Round(2).InexactFloat64()
		value = &v
	}
	if err := s.cache.PatchItem(ctx, userID, productID, func(item *wishlist.Item) {
		item.TargetPrice = value
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cache")
	}
	return nil
}
