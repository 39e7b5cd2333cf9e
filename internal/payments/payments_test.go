package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/wishlist-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequirement(t *testing.T) Requirement {
	t.Helper()
	req, err := RequirementFromConfig(config.PaymentsConfig{
		QueryPrice:  "0.001",
		Network:     "base-sepolia",
		PayTo:       "0xabc",
		VerifierURL: "http://verifier.local",
	}, "/api/v1/query", "wishlist insights")
	require.NoError(t, err)
	return req
}

func TestRequirementFromConfig(t *testing.T) {
	req := testRequirement(t)
	assert.Equal(t, "0.001", req.Price.String())
	assert.Equal(t, "0xabc", req.PayTo)

	_, err := RequirementFromConfig(config.PaymentsConfig{QueryPrice: "0.001"}, "/q", "")
	require.Error(t, err)

	_, err = RequirementFromConfig(config.PaymentsConfig{QueryPrice: "0", PayTo: "0xabc", VerifierURL: "http://v"}, "/q", "")
	require.Error(t, err)
}

type stubVerifier struct {
	receipt Receipt
	err     error
	proofs  []string
}

func (s *stubVerifier) Verify(_ context.Context, proof string, _ Requirement) (Receipt, error) {
	s.proofs = append(s.proofs, proof)
	return s.receipt, s.err
}

func TestGateCheck(t *testing.T) {
	ctx := context.Background()
	req := testRequirement(t)

	verifier := &stubVerifier{receipt: Receipt{TxID: "0xtx"}}
	gate, err := NewGate(req, verifier)
	require.NoError(t, err)

	_, err = gate.Check(ctx, "  ")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePaymentRequired, typed.Code())
	assert.Equal(t, req, typed.Details())
	assert.Empty(t, verifier.proofs)

	receipt, err := gate.Check(ctx, "0xtx")
	require.NoError(t, err)
	assert.Equal(t, "0xtx", receipt.TxID)

	verifier.err = ErrRejected
	_, err = gate.Check(ctx, "bad")
	assert.Equal(t, pkgerrors.CodePaymentRequired, pkgerrors.CodeOf(err))

	verifier.err = errors.New("connection reset")
	_, err = gate.Check(ctx, "0xtx")
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestNewGateValidates(t *testing.T) {
	_, err := NewGate(testRequirement(t), nil)
	require.Error(t, err)
	_, err = NewGate(Requirement{}, &stubVerifier{})
	require.Error(t, err)
}

func TestHTTPVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		switch in.Proof {
		case "good":
			_ = json.NewEncoder(w).Encode(verifyResponse{Valid: true, TxID: "0xgood"})
		case "down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_ = json.NewEncoder(w).Encode(verifyResponse{Valid: false, Reason: "insufficient amount"})
		}
	}))
	defer srv.Close()

	v, err := NewHTTPVerifier(srv.URL, time.Second)
	require.NoError(t, err)
	ctx := context.Background()
	req := testRequirement(t)

	receipt, err := v.Verify(ctx, "good", req)
	require.NoError(t, err)
	assert.Equal(t, Receipt{TxID: "0xgood", Network: "base-sepolia"}, receipt)

	_, err = v.Verify(ctx, "forged", req)
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "insufficient amount")

	_, err = v.Verify(ctx, "down", req)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)

	_, err = NewHTTPVerifier(" ", time.Second)
	require.Error(t, err)
}

type stubCapability struct {
	calls  int
	amount decimal.Decimal
	dest   string
	err    error
}

func (s *stubCapability) Pay(_ context.Context, amount decimal.Decimal, destination string) (string, error) {
	s.calls++
	s.amount = amount
	s.dest = destination
	return "0xpaid", s.err
}

func paidServer(t *testing.T, req Requirement) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get(HeaderPayment) != "0xpaid" {
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": "PAYMENT_REQUIRED", "message": "payment required", "details": req},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(Insights("desk"))
	}))
}

func TestClientPaysOnceAndReplays(t *testing.T) {
	req := testRequirement(t)
	srv := paidServer(t, req)
	defer srv.Close()

	capability := &stubCapability{}
	client, err := NewClient(srv.Client(), capability)
	require.NoError(t, err)

	var out InsightsResponse
	require.NoError(t, client.PostJSON(context.Background(), srv.URL, nil, map[string]string{"query": "desk"}, &out))
	assert.Equal(t, 1, capability.calls)
	assert.Equal(t, "0.001", capability.amount.String())
	assert.Equal(t, "0xabc", capability.dest)
	assert.Equal(t, 12847, out.WishlistInsights.TotalWishlistAdds)
}

func TestClientPaymentFailure(t *testing.T) {
	srv := paidServer(t, testRequirement(t))
	defer srv.Close()

	capability := &stubCapability{err: errors.New("user rejected")}
	client, err := NewClient(srv.Client(), capability)
	require.NoError(t, err)

	err = client.PostJSON(context.Background(), srv.URL, nil, map[string]string{"query": "desk"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user rejected")
	assert.Equal(t, 1, capability.calls)
}

func TestNewClientRequiresCapability(t *testing.T) {
	_, err := NewClient(nil, nil)
	require.Error(t, err)
}
