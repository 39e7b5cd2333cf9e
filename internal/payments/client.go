package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Client calls a paid endpoint. When the server answers 402 it pays the
// advertised requirement once through the capability and replays the request
// with the transaction id as proof.
type Client struct {
	http       *http.Client
	capability Capability
}

// NewClient builds a paying client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, capability Capability) (*Client, error) {
	if capability == nil {
		return nil, errors.New("payment capability is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, capability: capability}, nil
}

type errorEnvelope struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// PostJSON posts payload to url and decodes a 200 answer into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers http.Header, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, url, headers, body, "")
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusPaymentRequired {
		req, err := readRequirement(resp)
		if err != nil {
			return err
		}
		txID, err := c.capability.Pay(ctx, req.Price, req.PayTo)
		if err != nil {
			return fmt.Errorf("pay %s on %s: %w", req.Price.String(), req.Network, err)
		}
		resp, err = c.post(ctx, url, headers, body, txID)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var env errorEnvelope
		_ = json.NewDecoder(resp.Body).Decode(&env)
		return fmt.Errorf("paid request failed: status %d %s", resp.StatusCode, env.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, url string, headers http.Header, body []byte, proof string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	if proof != "" {
		req.Header.Set(HeaderPayment, proof)
	}
	return c.http.Do(req)
}

func readRequirement(resp *http.Response) (Requirement, error) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Requirement{}, err
	}
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Requirement{}, fmt.Errorf("decode payment requirement: %w", err)
	}
	return decodeRequirement(env.Error.Details)
}
