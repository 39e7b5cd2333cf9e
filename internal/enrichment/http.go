package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while a breaker rejects outbound calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// HTTPOptions configures the outbound clients used by enrichment.
type HTTPOptions struct {
	Timeout        time.Duration
	UserAgent      string
	MaxBodyBytes   int64
	BreakerTimeout time.Duration
	Client         *http.Client
	Logger         *logger.Logger
}

// HTTPOptionsFromConfig maps the enrichment config section onto client options.
func HTTPOptionsFromConfig(cfg config.EnrichmentConfig, timeout time.Duration, logg *logger.Logger) HTTPOptions {
	return HTTPOptions{
		Timeout:        timeout,
		UserAgent:      cfg.UserAgent,
		MaxBodyBytes:   int64(cfg.MaxHTMLBytes),
		BreakerTimeout: cfg.BreakerTimeout,
		Logger:         logg,
	}
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "Wish-Bot/1.0"
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = 30 * time.Second
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: o.Timeout}
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

func newBreaker[T any](name string, opts HTTPOptions) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := opts.Logger.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			opts.Logger.Warn(ctx, "circuit breaker state change")
		},
	})
}

func checkHTTPURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("missing host")
	}
	return parsed, nil
}

// ImageValidator confirms an image URL answers a HEAD request with an image
// content type before it is saved on a product.
type ImageValidator struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	breaker   *gobreaker.CircuitBreaker[bool]
}

// NewImageValidator builds a validator whose outbound calls share one breaker.
func NewImageValidator(opts HTTPOptions) *ImageValidator {
	opts = opts.withDefaults()
	return &ImageValidator{
		client:    opts.Client,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		breaker:   newBreaker[bool]("image-validator", opts),
	}
}

// Validate reports whether rawURL serves an image. Malformed or non-http
// URLs are rejected without a request; a non-200 answer is (false, nil).
func (v *ImageValidator) Validate(ctx context.Context, rawURL string) (bool, error) {
	target, err := checkHTTPURL(rawURL)
	if err != nil {
		return false, nil
	}
	return v.breaker.Execute(func() (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), http.NoBody)
		if err != nil {
			return false, err
		}
		req.Header.Set("User-Agent", v.userAgent)
		resp, err := v.client.Do(req)
		if err != nil {
			return false, fmt.Errorf("head %s: %w", target.Host, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return false, fmt.Errorf("head %s: status %d", target.Host, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return false, nil
		}
		mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if err != nil {
			return false, nil
		}
		return strings.HasPrefix(strings.ToLower(mediaType), "image/"), nil
	})
}

// Page is a captured product page.
type Page struct {
	HTML  string
	URL   string
	Title string
}

// PageFetcher downloads a page when the client did not send its HTML.
type PageFetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	maxBytes  int64
	extractor *Extractor
	breaker   *gobreaker.CircuitBreaker[Page]
}

// NewPageFetcher builds a fetcher whose outbound calls share one breaker.
func NewPageFetcher(opts HTTPOptions) *PageFetcher {
	opts = opts.withDefaults()
	return &PageFetcher{
		client:    opts.Client,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBodyBytes,
		extractor: NewExtractor(0),
		breaker:   newBreaker[Page]("page-fetcher", opts),
	}
}

// Fetch GETs rawURL and returns its HTML, final URL and title. Bodies larger
// than the configured limit are truncated.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	target, err := checkHTTPURL(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("invalid page url: %w", err)
	}
	return f.breaker.Execute(func() (Page, error) {
		ctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
		if err != nil {
			return Page{}, err
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
		resp, err := f.client.Do(req)
		if err != nil {
			return Page{}, fmt.Errorf("get %s: %w", target.Host, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return Page{}, fmt.Errorf("get %s: status %d", target.Host, resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
		if err != nil {
			return Page{}, fmt.Errorf("read %s: %w", target.Host, err)
		}

		page := Page{HTML: string(body), URL: resp.Request.URL.String()}
		page.Title = f.extractor.Metadata(page.HTML).Title
		return page, nil
	})
}
