package chaingateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPaymentRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, verifyTransactionEndpoint, r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tx-123", req.TxRef)
		assert.Equal(t, int64(500), req.ExpectedAmount)

		json.NewEncoder(w).Encode(verifyResponse{Valid: true, Amount: 500})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	v, err := c.VerifyPayment(context.Background(), "tx-123", "wallet-a", 500)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, int64(500), v.Amount)
}

func TestVerifyPaymentRejectionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(verifyResponse{Valid: false, Reason: "amount mismatch"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	v, err := c.VerifyPayment(context.Background(), "tx-123", "wallet-a", 500)
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestExecutePayoutReturnsTxRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, executePayoutEndpoint, r.URL.Path)

		var req payoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "wallet-b", req.Recipient)
		assert.Equal(t, int64(3600), req.Amount)

		json.NewEncoder(w).Encode(payoutResponse{TxRef: "tx-out-9"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ref, err := c.ExecutePayout(context.Background(), "wallet-b", 3600)
	require.NoError(t, err)
	assert.Equal(t, "tx-out-9", ref)
}

func TestGatewayErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "escrow drained", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.ExecutePayout(context.Background(), "wallet-b", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
