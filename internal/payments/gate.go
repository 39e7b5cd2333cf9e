package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/sony/gobreaker/v2"
)

// Verifier checks a payment proof against a requirement.
type Verifier interface {
	Verify(ctx context.Context, proof string, req Requirement) (Receipt, error)
}

// ErrRejected is returned by a verifier that understood the proof and refused it.
var ErrRejected = errors.New("payment rejected")

// Gate guards a paid resource.
type Gate struct {
	requirement Requirement
	verifier    Verifier
}

// NewGate builds a gate charging req through verifier.
func NewGate(req Requirement, verifier Verifier) (*Gate, error) {
	if verifier == nil {
		return nil, errors.New("payment verifier is required")
	}
	if req.PayTo == "" || !req.Price.IsPositive() {
		return nil, errors.New("payment requirement is incomplete")
	}
	return &Gate{requirement: req, verifier: verifier}, nil
}

// Requirement returns what the gated resource costs.
func (g *Gate) Requirement() Requirement {
	return g.requirement
}

// Check verifies proof. A missing or rejected proof yields PAYMENT_REQUIRED
// carrying the requirement; a verifier outage yields DEPENDENCY_ERROR.
func (g *Gate) Check(ctx context.Context, proof string) (Receipt, error) {
	proof = strings.TrimSpace(proof)
	if proof == "" {
		return Receipt{}, pkgerrors.New(pkgerrors.CodePaymentRequired, "payment required").WithDetails(g.requirement)
	}
	receipt, err := g.verifier.Verify(ctx, proof, g.requirement)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return Receipt{}, pkgerrors.Wrap(pkgerrors.CodePaymentRequired, err, "payment rejected").WithDetails(g.requirement)
		}
		return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify payment")
	}
	return receipt, nil
}

// HTTPVerifier asks a facilitator service to verify proofs.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[Receipt]
}

// NewHTTPVerifier builds a verifier posting to endpoint.
func NewHTTPVerifier(endpoint string, timeout time.Duration) (*HTTPVerifier, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("verifier url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[Receipt](gobreaker.Settings{
			Name:    "payment-verifier",
			Timeout: 30 * time.Second,
			// Rejections are answers, not outages.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrRejected)
			},
		}),
	}, nil
}

type verifyRequest struct {
	Proof       string      `json:"proof"`
	Requirement Requirement `json:"requirement"`
}

type verifyResponse struct {
	Valid   bool   `json:"valid"`
	TxID    string `json:"txId"`
	Network string `json:"network"`
	Reason  string `json:"reason"`
}

// Verify posts the proof and requirement and interprets the answer.
func (v *HTTPVerifier) Verify(ctx context.Context, proof string, req Requirement) (Receipt, error) {
	body, err := json.Marshal(verifyRequest{Proof: proof, Requirement: req})
	if err != nil {
		return Receipt{}, err
	}
	return v.breaker.Execute(func() (Receipt, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
		if err != nil {
			return Receipt{}, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		resp, err := v.client.Do(httpReq)
		if err != nil {
			return Receipt{}, fmt.Errorf("call verifier: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return Receipt{}, fmt.Errorf("verifier status %d", resp.StatusCode)
		}
		var out verifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return Receipt{}, fmt.Errorf("decode verifier response: %w", err)
		}
		if resp.StatusCode != http.StatusOK || !out.Valid {
			reason := out.Reason
			if reason == "" {
				reason = fmt.Sprintf("status %d", resp.StatusCode)
			}
			return Receipt{}, fmt.Errorf("%w: %s", ErrRejected, reason)
		}
		if out.Network == "" {
			out.Network = req.Network
		}
		return Receipt{TxID: out.TxID, Network: out.Network}, nil
	})
}
