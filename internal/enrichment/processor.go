package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const descriptionFallbackLength = 280

// ProductStore persists enrichment results.
type ProductStore interface {
	ApplyEnrichment(ctx context.Context, productID uuid.UUID, e wishlist.Enrichment) error
	InsertPrice(ctx context.Context, productID uuid.UUID, amount decimal.Decimal, currency, sourceURL string) error
}

// RefreshFlagger marks a user's cache as stale.
type RefreshFlagger interface {
	SetNeedsRefresh(ctx context.Context, userID uuid.UUID) error
}

type imageChecker interface {
	Validate(ctx context.Context, rawURL string) (bool, error)
}

type pageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// ProcessorParams groups dependencies for the enrichment processor.
type ProcessorParams struct {
	Store           ProductStore
	Cache           RefreshFlagger
	Extractor       *Extractor
	Images          imageChecker
	Pages           pageFetcher
	DefaultCurrency string
	Metrics         *metrics.EnrichmentMetrics
	Logger          *logger.Logger
}

// Processor turns a captured page into product fields and a price point.
type Processor struct {
	store           ProductStore
	cache           RefreshFlagger
	extractor       *Extractor
	images          imageChecker
	pages           pageFetcher
	defaultCurrency string
	metrics         *metrics.EnrichmentMetrics
	logg            *logger.Logger
}

// Result describes what a job wrote. Skipped collects the non-fatal
// failures (rejected images, the refresh flag) that did not stop the job.
type Result struct {
	Applied  wishlist.Enrichment
	Price    *decimal.Decimal
	Currency string
	Skipped  error
}

// NewProcessor validates the dependencies and builds a processor.
func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product store is required")
	}
	if params.Cache == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cache is required")
	}
	if params.Images == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image validator is required")
	}
	if params.Pages == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "page fetcher is required")
	}
	extractor := params.Extractor
	if extractor == nil {
		extractor = NewExtractor(0)
	}
	currency := strings.ToUpper(strings.TrimSpace(params.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Processor{
		store:           params.Store,
		cache:           params.Cache,
		extractor:       extractor,
		images:          params.Images,
		pages:           params.Pages,
		defaultCurrency: currency,
		metrics:         params.Metrics,
		logg:            logg,
	}, nil
}

func (p *Processor) step(name string, start time.Time, err error) {
	p.metrics.ObserveDuration(name, time.Since(start))
	if err != nil {
		p.metrics.IncFailure(name)
		return
	}
	p.metrics.IncSuccess(name)
}

// Process enriches the product named by job. Returned errors carry a code so
// the consumer can tell a retryable dependency failure from a dead job.
func (p *Processor) Process(ctx context.Context, job Job) (Result, error) {
	if err := job.validate(); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid enrichment job")
	}
	ctx = p.logg.WithFields(ctx, map[string]any{
		"user_id": job.UserID.String(),
		"item_id": job.ItemID.String(),
	})

	raw, pageURL, err := p.pageHTML(ctx, job)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	meta := p.extractor.Metadata(raw)
	cleaned := p.extractor.CleanText(raw)
	p.step("extract", start, nil)

	var skipped error
	applied := wishlist.Enrichment{
		Title:       meta.Title,
		Brand:       meta.Brand,
		Category:    meta.Category,
		Description: meta.Description,
	}
	if applied.Description == "" {
		applied.Description = truncateRunes(cleaned, descriptionFallbackLength)
	}

	imageURL, imageErr := p.pickImage(ctx, raw, pageURL, meta.ImageURL)
	skipped = multierr.Append(skipped, imageErr)
	applied.ImageURL = imageURL

	start = time.Now()
	err = p.store.ApplyEnrichment(ctx, job.ItemID, applied)
	p.step("store", start, err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply enrichment")
	}
	result := Result{Applied: applied}

	if meta.Price != nil {
		currency := meta.Currency
		if currency == "" {
			currency = p.defaultCurrency
		}
		start = time.Now()
		err = p.store.InsertPrice(ctx, job.ItemID, *meta.Price, currency, pageURL)
		p.step("price", start, err)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert price")
		}
		result.Price = meta.Price
		result.Currency = currency
	}

	start = time.Now()
	err = p.cache.SetNeedsRefresh(ctx, job.UserID)
	p.step("notify", start, err)
	if err != nil {
		skipped = multierr.Append(skipped, fmt.Errorf("flag cache refresh: %w", err))
	}

	result.Skipped = skipped
	if skipped != nil {
		p.logg.Warn(p.logg.WithField(ctx, "skipped", skipped.Error()), "enrichment finished with skipped steps")
	} else {
		p.logg.Info(ctx, "enrichment finished")
	}
	return result, nil
}

func (p *Processor) pageHTML(ctx context.Context, job Job) (string, string, error) {
	if strings.TrimSpace(job.HTML) != "" {
		return job.HTML, job.SourceURL, nil
	}
	start := time.Now()
	page, err := p.pages.Fetch(ctx, job.SourceURL)
	p.step("fetch", start, err)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch page")
	}
	if strings.TrimSpace(page.HTML) == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "page has no content")
	}
	pageURL := page.URL
	if pageURL == "" {
		pageURL = job.SourceURL
	}
	return page.HTML, pageURL, nil
}

// pickImage validates the declared og:image first, then the best image found
// in the page body. It returns "" when neither passes.
func (p *Processor) pickImage(ctx context.Context, raw, pageURL, declared string) (string, error) {
	start := time.Now()
	var errs error
	seen := map[string]bool{}
	candidates := []string{}
	if declared != "" {
		candidates = append(candidates, resolve(pageURL, declared))
	}
	if found := p.extractor.ImageURL(raw, pageURL); found != "" {
		candidates = append(candidates, found)
	}

	for _, candidate := range candidates {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		ok, err := p.images.Validate(ctx, candidate)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("validate image %s: %w", candidate, err))
			continue
		}
		if ok {
			p.step("image", start, nil)
			return candidate, errs
		}
	}
	if len(candidates) > 0 {
		p.step("image", start, errs)
	}
	return "", errs
}
