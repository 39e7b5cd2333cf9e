package payments

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wishlist-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
)

const testWallet = "0x1111111111111111111111111111111111111111"

func testOnrampConfig(t *testing.T, tokenURL string) (config.OnrampConfig, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	block := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	return config.OnrampConfig{
		APIKeyID:         "organizations/org/apiKeys/key",
		APIKeySecret:     strings.ReplaceAll(string(block), "\n", `\n`),
		TokenURL:         tokenURL,
		PayURL:           "https://pay.example/buy/select-asset",
		Network:          "base",
		Asset:            "ETH",
		PresetFiatAmount: "100",
	}, key
}

type stubOnrampProvider struct {
	token     string
	err       error
	addresses []string
}

func (s *stubOnrampProvider) SessionToken(_ context.Context, address string) (string, error) {
	s.addresses = append(s.addresses, address)
	return s.token, s.err
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("  0xABCDEFabcdef0123456789012345678901234567 ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdefabcdef0123456789012345678901234567", got)

	for _, bad := range []string{"", "1111111111111111111111111111111111111111aa", "0x1234", "0xzz11111111111111111111111111111111111111"} {
		_, err := NormalizeAddress(bad)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), "address %q", bad)
	}
}

func TestOnrampSessionURL(t *testing.T) {
	cfg, _ := testOnrampConfig(t, "https://api.example/onramp/v1/token")
	provider := &stubOnrampProvider{token: "tok en"}
	onramp, err := NewOnramp(provider, cfg)
	require.NoError(t, err)

	_, err = onramp.SessionURL(context.Background(), strings.ToUpper(testWallet[2:]))
	require.Error(t, err, "missing 0x prefix")
	assert.Empty(t, provider.addresses)

	link, err := onramp.SessionURL(context.Background(), testWallet)
	require.NoError(t, err)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "pay.example", parsed.Host)
	assert.Equal(t, "/buy/select-asset", parsed.Path)
	assert.Equal(t, "tok en", parsed.Query().Get("sessionToken"))
	assert.Equal(t, "base", parsed.Query().Get("defaultNetwork"))
	assert.Equal(t, "100", parsed.Query().Get("presetFiatAmount"))
	assert.Equal(t, []string{testWallet}, provider.addresses)
}

func TestOnrampProviderFailureIsDependency(t *testing.T) {
	cfg, _ := testOnrampConfig(t, "https://api.example/onramp/v1/token")
	onramp, err := NewOnramp(&stubOnrampProvider{err: errors.New("status 401")}, cfg)
	require.NoError(t, err)

	_, err = onramp.SessionURL(context.Background(), testWallet)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestCDPOnrampSessionToken(t *testing.T) {
	var key *ecdsa.PrivateKey
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/onramp/v1/token", r.URL.Path)

		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.Parse(bearer, func(tok *jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"ES256"}))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "organizations/org/apiKeys/key", token.Header["kid"])
		assert.NotEmpty(t, token.Header["nonce"])
		claims := token.Claims.(jwt.MapClaims)
		assert.Equal(t, "cdp", claims["iss"])
		assert.Equal(t, "POST "+r.Host+"/onramp/v1/token", claims["uri"])

		var body onrampTokenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []onrampAddress{{Address: testWallet, Blockchains: []string{"base"}}}, body.Addresses)
		assert.Equal(t, []string{"ETH"}, body.Assets)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"session-123","channel_id":""}`))
	}))
	defer srv.Close()

	cfg, k := testOnrampConfig(t, srv.URL+"/onramp/v1/token")
	key = k
	provider, err := NewCDPOnramp(cfg)
	require.NoError(t, err)

	token, err := provider.SessionToken(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, "session-123", token)
}

func TestCDPOnrampRejectedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg, _ := testOnrampConfig(t, srv.URL+"/onramp/v1/token")
	provider, err := NewCDPOnramp(cfg)
	require.NoError(t, err)

	_, err = provider.SessionToken(context.Background(), testWallet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestNewCDPOnrampValidatesKey(t *testing.T) {
	_, err := NewCDPOnramp(config.OnrampConfig{})
	require.Error(t, err)

	_, err = NewCDPOnramp(config.OnrampConfig{APIKeyID: "id", APIKeySecret: "not a key", TokenURL: "https://api.example/t"})
	require.Error(t, err)
}
