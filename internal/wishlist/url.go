package wishlist

import (
	"errors"
	"net/url"
	"strings"
)

var ErrInvalidURL = errors.New("page url must be an absolute http(s) url")

// NormalizeURL strips the query string and fragment so every capture of the
// same page maps to one product.
func NormalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidURL
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return "", ErrInvalidURL
	}
	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String(), nil
}
