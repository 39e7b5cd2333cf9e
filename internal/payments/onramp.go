package payments

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/wishlist-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
)

var walletAddress = regexp.MustCompile(`^0x[a-f0-9]{40}$`)

// OnrampProvider mints a session token that lets the holder buy funds
// delivered to address.
type OnrampProvider interface {
	SessionToken(ctx context.Context, address string) (string, error)
}

// Onramp turns a wallet address into a hosted checkout link.
type Onramp struct {
	provider OnrampProvider
	payURL   *url.URL
	network  string
	preset   string
}

// NewOnramp builds the onramp service from its config section.
func NewOnramp(provider OnrampProvider, cfg config.OnrampConfig) (*Onramp, error) {
	if provider == nil {
		return nil, errors.New("onramp provider is required")
	}
	payURL, err := url.Parse(strings.TrimSpace(cfg.PayURL))
	if err != nil || payURL.Scheme == "" || payURL.Host == "" {
		return nil, fmt.Errorf("invalid onramp pay url %q", cfg.PayURL)
	}
	return &Onramp{
		provider: provider,
		payURL:   payURL,
		network:  cfg.Network,
		preset:   cfg.PresetFiatAmount,
	}, nil
}

// NormalizeAddress lowercases address and checks it is a 0x prefixed
// 20 byte hex string.
func NormalizeAddress(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	switch {
	case address == "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, "wallet address is required")
	case !strings.HasPrefix(address, "0x"):
		return "", pkgerrors.New(pkgerrors.CodeValidation, "wallet address must start with 0x")
	case len(address) != 42:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "wallet address must be 42 characters long")
	case !walletAddress.MatchString(address):
		return "", pkgerrors.New(pkgerrors.CodeValidation, "wallet address must be hexadecimal")
	}
	return address, nil
}

// SessionURL returns the checkout link funding address.
func (o *Onramp) SessionURL(ctx context.Context, address string) (string, error) {
	address, err := NormalizeAddress(address)
	if err != nil {
		return "", err
	}
	token, err := o.provider.SessionToken(ctx, address)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate onramp session")
	}

	link := *o.payURL
	query := link.Query()
	query.Set("sessionToken", token)
	if o.network != "" {
		query.Set("defaultNetwork", o.network)
	}
	if o.preset != "" {
		query.Set("presetFiatAmount", o.preset)
	}
	link.RawQuery = query.Encode()
	return link.String(), nil
}

const cdpTokenLifetime = 2 * time.Minute

// CDPOnramp requests session tokens from the Coinbase Developer Platform,
// authenticating each call with a short lived ES256 JWT.
type CDPOnramp struct {
	keyID    string
	key      *ecdsa.PrivateKey
	tokenURL *url.URL
	network  string
	asset    string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[string]
	now      func() time.Time
}

// NewCDPOnramp parses the configured key and builds the provider.
func NewCDPOnramp(cfg config.OnrampConfig) (*CDPOnramp, error) {
	if !cfg.Enabled() {
		return nil, errors.New("onramp credentials are not configured")
	}
	secret := strings.ReplaceAll(strings.TrimSpace(cfg.APIKeySecret), `\n`, "\n")
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("parse onramp api key: %w", err)
	}
	tokenURL, err := url.Parse(strings.TrimSpace(cfg.TokenURL))
	if err != nil || tokenURL.Host == "" {
		return nil, fmt.Errorf("invalid onramp token url %q", cfg.TokenURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CDPOnramp{
		keyID:    strings.TrimSpace(cfg.APIKeyID),
		key:      key,
		tokenURL: tokenURL,
		network:  cfg.Network,
		asset:    cfg.Asset,
		client:   &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:    "onramp",
			Timeout: 30 * time.Second,
		}),
		now: time.Now,
	}, nil
}

type onrampAddress struct {
	Address     string   `json:"address"`
	Blockchains []string `json:"blockchains"`
}

type onrampTokenRequest struct {
	Addresses []onrampAddress `json:"addresses"`
	Assets    []string        `json:"assets"`
}

type onrampTokenResponse struct {
	Token string `json:"token"`
}

// SessionToken posts the destination address and returns the minted token.
func (c *CDPOnramp) SessionToken(ctx context.Context, address string) (string, error) {
	body, err := json.Marshal(onrampTokenRequest{
		Addresses: []onrampAddress{{Address: address, Blockchains: []string{c.network}}},
		Assets:    []string{c.asset},
	})
	if err != nil {
		return "", err
	}
	bearer, err := c.signRequest(http.MethodPost)
	if err != nil {
		return "", err
	}

	return c.breaker.Execute(func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL.String(), bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("call onramp: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return "", fmt.Errorf("onramp status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		}
		var out onrampTokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode onramp response: %w", err)
		}
		if out.Token == "" {
			return "", errors.New("onramp response carried no token")
		}
		return out.Token, nil
	})
}

// signRequest builds the bearer JWT bound to method and the token endpoint.
func (c *CDPOnramp) signRequest(method string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"sub": c.keyID,
		"iss": "cdp",
		"nbf": now.Unix(),
		"exp": now.Add(cdpTokenLifetime).Unix(),
		"uri": method + " " + c.tokenURL.Host + c.tokenURL.Path,
	})
	token.Header["kid"] = c.keyID
	token.Header["nonce"] = hex.EncodeToString(nonce)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign onramp request: %w", err)
	}
	return signed, nil
}
