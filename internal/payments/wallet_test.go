package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPWalletPay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body payRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0.001", body.Amount.String())
		assert.Equal(t, "0xabc", body.Destination)
		assert.Equal(t, "base-sepolia", body.Network)
		_, _ = w.Write([]byte(`{"txId":"0xtx"}`))
	}))
	defer srv.Close()

	wallet, err := NewHTTPWallet(srv.URL, "base-sepolia", time.Second)
	require.NoError(t, err)
	txID, err := wallet.Pay(context.Background(), decimal.RequireFromString("0.001"), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xtx", txID)
}

func TestHTTPWalletPayFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"insufficient funds"}`))
	}))
	defer srv.Close()

	wallet, err := NewHTTPWallet(srv.URL, "", time.Second)
	require.NoError(t, err)

	_, err = wallet.Pay(context.Background(), decimal.RequireFromString("0.001"), "0xabc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")

	_, err = wallet.Pay(context.Background(), decimal.Zero, "0xabc")
	require.Error(t, err)

	_, err = NewHTTPWallet(" ", "", time.Second)
	require.Error(t, err)
}

func TestClientPaysThroughWallet(t *testing.T) {
	walletSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"txId":"0xpaid"}`))
	}))
	defer walletSrv.Close()
	api := paidServer(t, testRequirement(t))
	defer api.Close()

	wallet, err := NewHTTPWallet(walletSrv.URL, "base-sepolia", time.Second)
	require.NoError(t, err)
	client, err := NewClient(api.Client(), wallet)
	require.NoError(t, err)

	var out InsightsResponse
	require.NoError(t, client.PostJSON(context.Background(), api.URL, nil, map[string]string{"query": "desk"}, &out))
	assert.Equal(t, "desk", out.Query)
}
