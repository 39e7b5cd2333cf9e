package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPWallet pays through a wallet service that signs and submits transfers.
type HTTPWallet struct {
	endpoint string
	network  string
	client   *http.Client
}

// NewHTTPWallet builds a capability posting transfer requests to endpoint.
func NewHTTPWallet(endpoint, network string, timeout time.Duration) (*HTTPWallet, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("wallet url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPWallet{endpoint: endpoint, network: network, client: &http.Client{Timeout: timeout}}, nil
}

type payRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination"`
	Network     string          `json:"network,omitempty"`
}

type payResponse struct {
	TxID  string `json:"txId"`
	Error string `json:"error"`
}

// Pay transfers amount to destination and returns the transaction id.
func (w *HTTPWallet) Pay(ctx context.Context, amount decimal.Decimal, destination string) (string, error) {
	if !amount.IsPositive() {
		return "", errors.New("amount must be positive")
	}
	body, err := json.Marshal(payRequest{Amount: amount, Destination: destination, Network: w.network})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call wallet: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}
	var out payResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("wallet status %d: %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("wallet status %d", resp.StatusCode)
	}
	if out.TxID == "" {
		return "", errors.New("wallet response carried no transaction id")
	}
	return out.TxID, nil
}
