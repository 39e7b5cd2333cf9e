package enrichment

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

// DefaultMaxTextLength bounds the cleaned page text.
const DefaultMaxTextLength = 40000

var (
	noiseSelector  = "script, style, nav, header, footer, aside, noscript"
	imageSelectors = []string{
		`img[class*="product"]`,
		`img[class*="item"]`,
		`img[alt*="product"]`,
		`img[src]`,
	}
	whitespace  = regexp.MustCompile(`\s+`)
	priceDigits = regexp.MustCompile(`[^0-9.,]`)
)

// Metadata is what a product page declares about itself through OpenGraph,
// product meta tags and microdata.
type Metadata struct {
	Title       string
	Brand       string
	Category    string
	Description string
	ImageURL    string
	Price       *decimal.Decimal
	Currency    string
}

// Extractor pulls product text, images and metadata out of captured HTML.
type Extractor struct {
	maxTextLength int
}

// NewExtractor builds an extractor truncating cleaned text at maxTextLength
// characters (DefaultMaxTextLength when not positive).
func NewExtractor(maxTextLength int) *Extractor {
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	return &Extractor{maxTextLength: maxTextLength}
}

func parse(raw string) (*goquery.Document, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, false
	}
	return doc, true
}

func classContains(terms ...string) func(int, *goquery.Selection) bool {
	return func(_ int, s *goquery.Selection) bool {
		class := strings.ToLower(s.AttrOr("class", ""))
		for _, term := range terms {
			if strings.Contains(class, term) {
				return true
			}
		}
		return false
	}
}

// CleanText returns the readable text of the page's main content with noise
// elements removed and whitespace collapsed. Empty input yields "".
func (e *Extractor) CleanText(raw string) string {
	doc, ok := parse(raw)
	if !ok {
		return ""
	}
	doc.Find(noiseSelector).Remove()

	area := doc.Find("main").First()
	if area.Length() == 0 {
		area = doc.Find("article").First()
	}
	if area.Length() == 0 {
		area = doc.Find("div").FilterFunction(classContains("content")).First()
	}
	if area.Length() == 0 {
		area = doc.Find("body").First()
	}
	if area.Length() == 0 {
		area = doc.Selection
	}

	var parts []string
	for _, node := range area.Nodes {
		collectText(node, &parts)
	}
	text := strings.TrimSpace(whitespace.ReplaceAllString(strings.Join(parts, " "), " "))
	return truncateRunes(text, e.maxTextLength)
}

func collectText(n *html.Node, out *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*out = append(*out, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, out)
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// ImageURL returns the first plausible product image, resolved against base.
// Content areas are searched in order and within each area the selectors
// prefer product-looking images. Data URIs and placeholder or loading images
// are skipped.
func (e *Extractor) ImageURL(raw, base string) string {
	doc, ok := parse(raw)
	if !ok {
		return ""
	}
	areas := []*goquery.Selection{
		doc.Find("main").First(),
		doc.Find("article").First(),
		doc.Find("div").FilterFunction(classContains("product", "item", "content")).First(),
		doc.Find("body").First(),
		doc.Selection,
	}
	for _, area := range areas {
		if area.Length() == 0 {
			continue
		}
		for _, selector := range imageSelectors {
			var found string
			area.Find(selector).EachWithBreak(func(_ int, img *goquery.Selection) bool {
				src := strings.TrimSpace(img.AttrOr("src", ""))
				if src == "" || skipImage(src) {
					return true
				}
				found = src
				return false
			})
			if found != "" {
				return resolve(base, found)
			}
		}
	}
	return ""
}

func skipImage(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "data:") ||
		strings.Contains(lower, "placeholder") ||
		strings.Contains(lower, "loading")
}

func resolve(base, ref string) string {
	if base == "" {
		return ref
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// Metadata reads the product fields a page declares. Missing fields are empty.
func (e *Extractor) Metadata(raw string) Metadata {
	doc, ok := parse(raw)
	if !ok {
		return Metadata{}
	}
	meta := Metadata{
		Title: firstOf(doc,
			metaContent(`meta[property="og:title"]`),
			metaContent(`meta[name="twitter:title"]`),
			itemprop("name"),
			text("title")),
		Brand: firstOf(doc,
			metaContent(`meta[property="product:brand"]`),
			metaContent(`meta[property="og:brand"]`),
			itemprop("brand")),
		Category: firstOf(doc,
			metaContent(`meta[property="product:category"]`),
			itemprop("category")),
		Description: firstOf(doc,
			metaContent(`meta[property="og:description"]`),
			metaContent(`meta[name="description"]`),
			itemprop("description")),
		ImageURL: firstOf(doc,
			metaContent(`meta[property="og:image"]`),
			metaContent(`meta[name="twitter:image"]`)),
		Currency: strings.ToUpper(firstOf(doc,
			metaContent(`meta[property="product:price:currency"]`),
			metaContent(`meta[property="og:price:currency"]`),
			itemprop("priceCurrency"))),
	}
	priceText := firstOf(doc,
		metaContent(`meta[property="product:price:amount"]`),
		metaContent(`meta[property="og:price:amount"]`),
		itemprop("price"))
	if price, ok := ParsePrice(priceText); ok {
		meta.Price = &price
	}
	return meta
}

type lookup func(doc *goquery.Document) string

func firstOf(doc *goquery.Document, lookups ...lookup) string {
	for _, fn := range lookups {
		if v := strings.TrimSpace(whitespace.ReplaceAllString(fn(doc), " ")); v != "" {
			return v
		}
	}
	return ""
}

func metaContent(selector string) lookup {
	return func(doc *goquery.Document) string {
		return doc.Find(selector).First().AttrOr("content", "")
	}
}

func itemprop(name string) lookup {
	return func(doc *goquery.Document) string {
		sel := doc.Find(`[itemprop="` + name + `"]`).First()
		if sel.Length() == 0 {
			return ""
		}
		if v, ok := sel.Attr("content"); ok && strings.TrimSpace(v) != "" {
			return v
		}
		// Nested microdata such as brand > [itemprop=name].
		if nested := sel.Find(`[itemprop="name"]`).First(); nested.Length() > 0 {
			if v, ok := nested.Attr("content"); ok {
				return v
			}
			return nested.Text()
		}
		return sel.Text()
	}
}

func text(selector string) lookup {
	return func(doc *goquery.Document) string {
		return doc.Find(selector).First().Text()
	}
}

// ParsePrice reads a displayed price such as "$1,299.99", "1.299,99" or
// "49" into a non-negative amount rounded to cents.
func ParsePrice(raw string) (decimal.Decimal, bool) {
	cleaned := priceDigits.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") == 1 && len(cleaned)-lastComma-1 == 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil || amount.IsNegative() {
		return decimal.Decimal{}, false
	}
	return amount.Round(2), true
}
