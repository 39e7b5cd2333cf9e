package wishlist

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/wishlist-backend/pkg/db"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateMembership is returned when the product is already on the wishlist.
var ErrDuplicateMembership = errors.New("product already in wishlist")

// Repository encapsulates wishlist persistence in the remote store.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// FindWishlistByUser returns the user's wishlist. When several exist the oldest wins.
func (r *Repository) FindWishlistByUser(ctx context.Context, userID uuid.UUID) (*models.Wishlist, error) {
	var list models.Wishlist
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		First(&list).
		Error
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateWishlist returns the user's wishlist, creating it on first use.
func (r *Repository) CreateWishlist(ctx context.Context, userID uuid.UUID) (*models.Wishlist, bool, error) {
	existing, err := r.FindWishlistByUser(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	list := models.Wishlist{ID: uuid.New(), UserID: userID, CreatedAt: r.now().UTC()}
	if err := r.db.WithContext(ctx).Create(&list).Error; err != nil {
		return nil, false, err
	}
	return &list, true, nil
}

type itemRecord struct {
	WishlistItemID uuid.UUID           `gorm:"column:wishlist_item_id"`
	AddedAt        time.Time           `gorm:"column:added_at"`
	TargetPrice    decimal.NullDecimal `gorm:"column:target_price"`
	ProductID      uuid.UUID           `gorm:"column:product_id"`
	Title          string              `gorm:"column:title"`
	Brand          *string             `gorm:"column:brand"`
	Category       *string             `gorm:"column:category"`
	SourceURL      string              `gorm:"column:source_url"`
	ImageURL       *string             `gorm:"column:image_url"`
}

// ListItems returns the wishlist's items, most recently added first, each with
// its price history in chronological order.
func (r *Repository) ListItems(ctx context.Context, wishlistID uuid.UUID) ([]Item, error) {
	var records []itemRecord
	err := r.db.WithContext(ctx).
		Table("wishlist_items wi").
		Select(strings.Join([]string{
			"wi.id AS wishlist_item_id",
			"wi.created_at AS added_at",
			"wi.target_price",
			"p.id AS product_id",
			"p.title",
			"p.brand",
			"p.category",
			"p.source_url",
			"p.image_url",
		}, ", ")).
		Joins("JOIN products p ON p.id = wi.product_id").
		Where("wi.wishlist_id = ?", wishlistID).
		Order("wi.created_at DESC").
		Order("wi.id DESC").
		Scan(&records).
		Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []Item{}, nil
	}

	productIDs := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		productIDs = append(productIDs, rec.ProductID)
	}

	var prices []models.Price
	if err := r.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("created_at ASC").
		Order("id ASC").
		Find(&prices).
		Error; err != nil {
		return nil, err
	}

	history := make(map[uuid.UUID][]PricePoint, len(records))
	for _, p := range prices {
		point := PricePoint{
			Amount:    p.Amount.InexactFloat64(),
			Currency:  p.Currency,
			CreatedAt: p.CreatedAt,
		}
		if p.SourceURL != nil {
			point.SourceURL = *p.SourceURL
		}
		history[p.ProductID] = append(history[p.ProductID], point)
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.toItem(history[rec.ProductID]))
	}
	return items, nil
}

func (rec itemRecord) toItem(history []PricePoint) Item {
	membershipID := rec.WishlistItemID
	if history == nil {
		history = []PricePoint{}
	}
	item := Item{
		ID:             rec.ProductID,
		WishlistItemID: &membershipID,
		Title:          rec.Title,
		Brand:          rec.Brand,
		SourceURL:      rec.SourceURL,
		Category:       rec.Category,
		ImageURL:       rec.ImageURL,
		CreatedAt:      rec.AddedAt,
		PriceHistory:   history,
	}
	if rec.TargetPrice.Valid {
		target := rec.TargetPrice.Decimal.InexactFloat64()
		item.TargetPrice = &target
	}
	item.DerivePrice()
	return item
}

// UpsertProduct inserts the product keyed by its normalized URL. An existing
// row with the same URL is reused untouched.
func (r *Repository) UpsertProduct(ctx context.Context, title, sourceURL string) (*models.Product, error) {
	now := r.now().UTC()
	candidate := models.Product{
		ID:        uuid.New(),
		Title:     title,
		SourceURL: sourceURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	conn := r.db.WithContext(ctx)
	if err := conn.
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_url"}}, DoNothing: true}).
		Omit("Prices").
		Create(&candidate).
		Error; err != nil {
		return nil, err
	}

	var product models.Product
	if err := conn.Where("source_url = ?", sourceURL).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// InsertMembership adds the product to the wishlist. A second insert of the
// same pair fails with ErrDuplicateMembership.
func (r *Repository) InsertMembership(ctx context.Context, wishlistID, productID uuid.UUID) (*models.WishlistItem, error) {
	if wishlistID == uuid.Nil || productID == uuid.Nil {
		return nil, gorm.ErrInvalidValue
	}
	row := models.WishlistItem{
		ID:         uuid.New(),
		WishlistID: wishlistID,
		ProductID:  productID,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, ErrDuplicateMembership
		}
		return nil, err
	}
	return &row, nil
}

// DeleteMembership removes the join row. Missing rows are not an error.
func (r *Repository) DeleteMembership(ctx context.Context, wishlistID, wishlistItemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND wishlist_id = ?", wishlistItemID, wishlistID).
		Delete(&models.WishlistItem{}).
		Error
}

// SetTargetPrice sets or clears (nil) the target price of a membership row.
func (r *Repository) SetTargetPrice(ctx context.Context, wishlistID, wishlistItemID uuid.UUID, target *decimal.Decimal) error {
	value := decimal.NullDecimal{}
	if target != nil {
		value = decimal.NewNullDecimal(*target)
	}
	res := r.db.WithContext(ctx).
		Model(&models.WishlistItem{}).
		Where("id = ? AND wishlist_id = ?", wishlistItemID, wishlistID).
		Update("target_price", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ToggleFavorite flips the favorite membership and returns the new state.
func (r *Repository) ToggleFavorite(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var favorited bool
	err := db.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.Favorite{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			favorited = false
			return nil
		}
		row := models.Favorite{UserID: userID, ProductID: productID, CreatedAt: r.now().UTC()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
		favorited = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return favorited, nil
}

// ListFavorites returns the product ids the user has favorited.
func (r *Repository) ListFavorites(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("product_id", &ids).
		Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ApplyEnrichment writes the non-empty enrichment fields onto the product.
func (r *Repository) ApplyEnrichment(ctx context.Context, productID uuid.UUID, e Enrichment) error {
	updates := map[string]any{}
	for column, value := range map[string]string{
		"title":       e.Title,
		"brand":       e.Brand,
		"category":    e.Category,
		"description": e.Description,
		"image_url":   e.ImageURL,
	} {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			updates[column] = trimmed
		}
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = r.now().UTC()

	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// InsertPrice appends an observed price to the product's history.
func (r *Repository) InsertPrice(ctx context.Context, productID uuid.UUID, amount decimal.Decimal, currency, sourceURL string) error {
	if amount.IsNegative() {
		return gorm.ErrInvalidValue
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	row := models.Price{
		ID:        uuid.New(),
		ProductID: productID,
		Amount:    amount.Round(2),
		Currency:  currency,
		CreatedAt: r.now().UTC(),
	}
	if src := strings.TrimSpace(sourceURL); src != "" {
		row.SourceURL = &src
	}
	return r.db.WithContext(ctx).Create(&row).Error
}
