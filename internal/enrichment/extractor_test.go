package enrichment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<!doctype html>
<html>
<head>
  <title>Walnut Desk | Shop</title>
  <meta property="og:title" content="Walnut Desk">
  <meta property="og:image" content="/img/desk-large.jpg">
  <meta property="product:brand" content="Oakline">
  <meta property="product:price:amount" content="1,299.99">
  <meta property="product:price:currency" content="eur">
  <script>var tracking = "ignore me";</script>
  <style>.x { color: red }</style>
</head>
<body>
  <header>Site header</header>
  <nav>Home / Furniture</nav>
  <main>
    <h1>Walnut   Desk</h1>
    <img src="data:image/png;base64,AAAA" class="product-hero">
    <img src="/img/desk.jpg" class="product-photo">
    <p>Solid walnut.
       Ships in 3 days.</p>
    <noscript>Enable JS</noscript>
  </main>
  <footer>Footer text</footer>
</body>
</html>`

func TestCleanText(t *testing.T) {
	e := NewExtractor(0)
	got := e.CleanText(productPage)
	assert.Equal(t, "Walnut Desk Solid walnut. Ships in 3 days.", got)
	assert.NotContains(t, got, "ignore me")
	assert.NotContains(t, got, "Footer")
}

func TestCleanTextAreaPreference(t *testing.T) {
	e := NewExtractor(0)

	article := `<body><div>outside</div><article>inside article</article></body>`
	assert.Equal(t, "inside article", e.CleanText(article))

	content := `<body><p>outside</p><div class="Page-Content">inside div</div></body>`
	assert.Equal(t, "inside div", e.CleanText(content))

	body := `<html><body><aside>ads</aside><p>just body</p></body></html>`
	assert.Equal(t, "just body", e.CleanText(body))
}

func TestCleanTextEmptyAndTruncated(t *testing.T) {
	e := NewExtractor(5)
	assert.Equal(t, "", e.CleanText("   "))
	assert.Equal(t, "héllo", e.CleanText("<main>héllo wörld</main>"))
}

func TestImageURL(t *testing.T) {
	e := NewExtractor(0)
	assert.Equal(t, "https://shop.example/img/desk.jpg", e.ImageURL(productPage, "https://shop.example/p/desk"))

	skipped := `<body>
	  <img src="/img/placeholder.png" class="item-thumb">
	  <img src="/spinner-loading.gif" alt="product">
	  <img src="https://cdn.example/real.jpg">
	</body>`
	assert.Equal(t, "https://cdn.example/real.jpg", e.ImageURL(skipped, "https://shop.example/"))

	assert.Equal(t, "", e.ImageURL(`<body><p>no images</p></body>`, "https://shop.example/"))
	assert.Equal(t, "", e.ImageURL("", "https://shop.example/"))
	assert.Equal(t, "img/a.jpg", e.ImageURL(`<img src="img/a.jpg">`, ""))
}

func TestMetadata(t *testing.T) {
	e := NewExtractor(0)
	meta := e.Metadata(productPage)
	assert.Equal(t, "Walnut Desk", meta.Title)
	assert.Equal(t, "Oakline", meta.Brand)
	assert.Equal(t, "EUR", meta.Currency)
	assert.Equal(t, "/img/desk-large.jpg", meta.ImageURL)
	require.NotNil(t, meta.Price)
	assert.Equal(t, "1299.99", meta.Price.StringFixed(2))
}

func TestMetadataMicrodata(t *testing.T) {
	page := `<html><head><title>Fallback title</title></head><body>
	  <div itemscope itemtype="https://schema.org/Product">
	    <span itemprop="brand" itemscope><meta itemprop="name" content="Acme"></span>
	    <span itemprop="category">Lighting</span>
	    <span itemprop="price" content="49.50">$49.50</span>
	    <meta itemprop="priceCurrency" content="USD">
	  </div>
	</body></html>`
	meta := NewExtractor(0).Metadata(page)
	assert.Equal(t, "Acme", meta.Brand)
	assert.Equal(t, "Lighting", meta.Category)
	assert.Equal(t, "USD", meta.Currency)
	require.NotNil(t, meta.Price)
	assert.Equal(t, "49.5", meta.Price.String())
	// itemprop=name inside brand is found before <title>.
	assert.Equal(t, "Acme", meta.Title)
}

func TestMetadataEmpty(t *testing.T) {
	meta := NewExtractor(0).Metadata(strings.Repeat(" ", 3))
	assert.Equal(t, Metadata{}, meta)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "$1,299.99", want: "1299.99", ok: true},
		{in: "1.299,99", want: "1299.99", ok: true},
		{in: "R$ 49,90", want: "49.9", ok: true},
		{in: "49", want: "49", ok: true},
		{in: "1,299", want: "1299", ok: true},
		{in: "1.234.567", want: "1234567", ok: true},
		{in: "19.999", want: "20", ok: true},
		{in: "free", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got.String(), tt.in)
		}
	}
}
